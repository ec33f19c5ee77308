package mongo

import (
	"reflect"
	"slices"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"rentsplit/internal/auctions/repository"
	"rentsplit/internal/migrations/mongo/validators"
	"rentsplit/pkg/model"
)

func bsonFields(t reflect.Type) []string {
	var fields []string
	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("bson"), ",")
		if name != "" && name != "-" {
			fields = append(fields, name)
		}
	}
	return fields
}

func schema(v bson.M) bson.M {
	return v["$jsonSchema"].(bson.M)
}

func TestAuctionValidator_MatchesModel(t *testing.T) {
	fields := bsonFields(reflect.TypeOf(model.Auction{}))
	s := schema(validators.AuctionValidator)

	for _, required := range s["required"].([]string) {
		if !slices.Contains(fields, required) {
			t.Errorf("required field %q is not stored by model.Auction", required)
		}
	}
	for name := range s["properties"].(bson.M) {
		if !slices.Contains(fields, name) {
			t.Errorf("schema property %q is not stored by model.Auction", name)
		}
	}
}

func TestAuctionLockValidator_MatchesModel(t *testing.T) {
	fields := bsonFields(reflect.TypeOf(model.AuctionLock{}))
	for _, required := range schema(validators.AuctionLockValidator)["required"].([]string) {
		if !slices.Contains(fields, required) {
			t.Errorf("required field %q is not stored by model.AuctionLock", required)
		}
	}
}

func TestCollections(t *testing.T) {
	collections := Collections()

	if _, ok := collections[repository.CollectionName]; !ok {
		t.Fatalf("missing %s collection", repository.CollectionName)
	}
	locks, ok := collections[repository.LockCollectionName]
	if !ok {
		t.Fatalf("missing %s collection", repository.LockCollectionName)
	}

	var ttl bool
	for _, idx := range locks.Indexes {
		if idx.Options != nil && idx.Options.ExpireAfterSeconds != nil && *idx.Options.ExpireAfterSeconds == 0 {
			ttl = true
		}
	}
	if !ttl {
		t.Error("lock collection needs a TTL index on expires_at")
	}
}
