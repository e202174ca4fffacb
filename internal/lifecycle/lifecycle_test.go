package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

func TestHappyPathStepwise(t *testing.T) {
	txn := &models.Transaction{Status: models.StatusPending}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for _, next := range []models.Status{
		models.StatusProcessing,
		models.StatusShipped,
		models.StatusDelivered,
		models.StatusCompleted,
	} {
		changed, err := Apply(txn, next, nil, now)
		require.NoError(t, err, "to %s", next)
		assert.True(t, changed)
		assert.Equal(t, next, txn.Status)
	}
	assert.Equal(t, now, txn.UpdatedAt)
	assert.True(t, IsTerminal(txn.Status))
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to models.Status
		ok       bool
	}{
		{models.StatusPending, models.StatusProcessing, true},
		{models.StatusPending, models.StatusCancelled, true},
		{models.StatusProcessing, models.StatusCancelled, true},
		{models.StatusProcessing, models.StatusShipped, true},
		{models.StatusShipped, models.StatusDelivered, true},
		{models.StatusDelivered, models.StatusCompleted, true},

		{models.StatusCompleted, models.StatusPending, false},
		{models.StatusDelivered, models.StatusPending, false},
		{models.StatusCompleted, models.StatusCancelled, false},
		{models.StatusShipped, models.StatusCancelled, false},
		{models.StatusCancelled, models.StatusPending, false},
		{models.StatusPending, models.StatusShipped, false},
		{models.StatusPending, models.StatusCompleted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := Validate(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
		})
	}
}

func TestApplyRejectedLeavesTransactionUnchanged(t *testing.T) {
	before := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	txn := &models.Transaction{Status: models.StatusCompleted, Notes: "done", UpdatedAt: before}
	notes := "reopen"

	_, err := Apply(txn, models.StatusPending, &notes, time.Now())
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Equal(t, models.StatusCompleted, txn.Status)
	assert.Equal(t, "done", txn.Notes)
	assert.Equal(t, before, txn.UpdatedAt)
}

func TestApplySameStatusEditsNotesOnly(t *testing.T) {
	txn := &models.Transaction{Status: models.StatusShipped}
	notes := "carrier: DHL"

	changed, err := Apply(txn, models.StatusShipped, &notes, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.StatusShipped, txn.Status)
	assert.Equal(t, "carrier: DHL", txn.Notes)
}

func TestApplyNoChangeKeepsUpdatedAt(t *testing.T) {
	before := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	notes := "carrier: DHL"

	for name, n := range map[string]*string{"nil notes": nil, "same notes": &notes} {
		t.Run(name, func(t *testing.T) {
			txn := &models.Transaction{Status: models.StatusShipped, Notes: notes, UpdatedAt: before}
			changed, err := Apply(txn, models.StatusShipped, n, time.Now())
			require.NoError(t, err)
			assert.False(t, changed)
			assert.Equal(t, before, txn.UpdatedAt)
			assert.Equal(t, "carrier: DHL", txn.Notes)
		})
	}
}

func TestApplyUnknownStatus(t *testing.T) {
	txn := &models.Transaction{Status: models.StatusPending}
	_, err := Apply(txn, models.Status("lost"), nil, time.Now())
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAllowedNextReturnsCopy(t *testing.T) {
	next := AllowedNext(models.StatusPending)
	assert.Equal(t, []models.Status{models.StatusProcessing, models.StatusCancelled}, next)
	next[0] = models.StatusCompleted
	assert.True(t, CanTransition(models.StatusPending, models.StatusProcessing))
	assert.Empty(t, AllowedNext(models.StatusCancelled))
}
