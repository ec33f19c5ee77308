package model

import "time"

// AuctionLock is an advisory lock document serializing writers of one
// auction across instances. A TTL index on ExpiresAt reaps abandoned locks.
type AuctionLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func (l *AuctionLock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
