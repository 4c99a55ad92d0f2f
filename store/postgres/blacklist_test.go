package pgstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/kindauth/model"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlacklist_Revoke(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	tests := []struct {
		name         string
		affected     int64
		execErr      error
		wantInserted bool
		wantErr      error
	}{
		{name: "first revoke inserts", affected: 1, wantInserted: true},
		{name: "repeat revoke is a no-op", affected: 0, wantInserted: false},
		{name: "backend failure", execErr: errors.New("broken pipe"), wantErr: model.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			exp := mock.ExpectExec(`INSERT INTO blacklisted_tokens .* ON CONFLICT \(jti\) DO NOTHING`).
				WithArgs("jti-1", "staff", at.UnixMilli())
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", tt.affected))
			}

			inserted, err := NewBlacklist(mock).Revoke(context.Background(), model.BlacklistedToken{JTI: "jti-1", Kind: model.KindStaff, BlacklistedAt: at})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantInserted, inserted)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBlacklist_IsRevokedAndSweep(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cutoff := time.UnixMilli(1700000000000)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("jti-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`DELETE FROM blacklisted_tokens WHERE blacklisted_at < \$1`).
		WithArgs(cutoff.UnixMilli()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	bl := NewBlacklist(mock)
	revoked, err := bl.IsRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	n, err := bl.Sweep(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
