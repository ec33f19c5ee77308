package validators

import "go.mongodb.org/mongo-driver/bson"

var money = bson.M{
	"bsonType": []string{"double", "int", "long"},
	"minimum":  0,
}

var AuctionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"total_rent",
			"phase",
			"round",
			"rooms",
			"users",
			"version",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"total_rent": bson.M{
				"bsonType":         []string{"double", "int", "long"},
				"exclusiveMinimum": 0,
			},

			"phase": bson.M{
				"bsonType": "string",
				"enum": []string{
					"waiting",
					"selecting",
					"bidding",
					"completed",
				},
			},

			"round": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"rooms": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType": "object",
					"required": []string{"id", "name", "base_price", "current_price", "status"},
					"properties": bson.M{
						"id":            bson.M{"bsonType": "string", "pattern": "^r[1-9][0-9]*$"},
						"name":          bson.M{"bsonType": "string", "minLength": 1, "maxLength": 64},
						"base_price":    money,
						"current_price": money,
						"status": bson.M{
							"bsonType": "string",
							"enum":     []string{"available", "contested", "assigned"},
						},
					},
				},
			},

			"users": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType": "object",
					"required": []string{"id", "name", "connected"},
					"properties": bson.M{
						"id":        bson.M{"bsonType": "string", "pattern": "^u[1-9][0-9]*$"},
						"name":      bson.M{"bsonType": "string", "minLength": 1, "maxLength": 64},
						"connected": bson.M{"bsonType": "bool"},
					},
				},
			},

			"selections": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType": "string",
				},
			},

			"bids": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType":             "object",
					"additionalProperties": money,
				},
			},

			"conflicts": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType": "array",
					"items":    bson.M{"bsonType": "string"},
				},
			},

			"version": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var AuctionLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "owner", "expires_at"},
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string"},
			"owner":      bson.M{"bsonType": "string", "minLength": 1},
			"expires_at": bson.M{"bsonType": "date"},
		},
	},
}
