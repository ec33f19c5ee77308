package mongo

import (
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsWriteConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "write conflict code", err: mongo.CommandError{Code: 112, Name: "WriteConflict"}, want: true},
		{name: "transient label", err: mongo.CommandError{Code: 251, Labels: []string{"TransientTransactionError"}}, want: true},
		{name: "wrapped", err: fmt.Errorf("transaction failed: %w", mongo.CommandError{Code: 112}), want: true},
		{name: "other command error", err: mongo.CommandError{Code: 11000}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWriteConflict(tt.err); got != tt.want {
				t.Errorf("IsWriteConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}
