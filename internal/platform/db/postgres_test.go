package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsMalformedDSN(t *testing.T) {
	_, err := New(context.Background(), "postgres://pos@localhost:notaport/backoffice", 4)
	require.Error(t, err)
	require.Contains(t, err.Error(), "db: parse PG_DSN")
}
