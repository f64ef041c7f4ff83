package services

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBatchStore implementa o compare-and-set de lote em memória
type fakeBatchStore struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]models.BatchStatus
}

func newFakeBatchStore() *fakeBatchStore {
	return &fakeBatchStore{statuses: make(map[uuid.UUID]models.BatchStatus)}
}

func (s *fakeBatchStore) TransitionStatus(id uuid.UUID, from, to models.BatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statuses[id] != from {
		return models.NewStateConflictError("batch status changed concurrently")
	}
	s.statuses[id] = to
	return nil
}

// fakeClaimStore implementa o compare-and-set de guia em memória
type fakeClaimStore struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]models.ClaimStatus
}

func newFakeClaimStore() *fakeClaimStore {
	return &fakeClaimStore{statuses: make(map[uuid.UUID]models.ClaimStatus)}
}

func (s *fakeClaimStore) TransitionStatus(id uuid.UUID, from, to models.ClaimStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statuses[id] != from {
		return models.NewStateConflictError("claim status changed concurrently")
	}
	s.statuses[id] = to
	return nil
}

func newTestStateMachine() (*LifecycleStateMachine, *fakeBatchStore, *fakeClaimStore) {
	batches := newFakeBatchStore()
	claims := newFakeClaimStore()
	return NewLifecycleStateMachine(batches, claims, testLogger()), batches, claims
}

func TestCanTransitionBatch(t *testing.T) {
	legal := []struct {
		from, to models.BatchStatus
	}{
		{models.BatchStatusDraft, models.BatchStatusValidating},
		{models.BatchStatusValidating, models.BatchStatusReady},
		{models.BatchStatusValidating, models.BatchStatusError},
		{models.BatchStatusReady, models.BatchStatusSending},
		{models.BatchStatusSending, models.BatchStatusSent},
		{models.BatchStatusSending, models.BatchStatusError},
		{models.BatchStatusSent, models.BatchStatusProcessing},
		{models.BatchStatusProcessing, models.BatchStatusProcessed},
		{models.BatchStatusProcessing, models.BatchStatusPartial},
		{models.BatchStatusProcessing, models.BatchStatusError},
		{models.BatchStatusError, models.BatchStatusReady},
	}

	for _, tc := range legal {
		assert.True(t, CanTransitionBatch(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct {
		from, to models.BatchStatus
	}{
		{models.BatchStatusDraft, models.BatchStatusSending},
		{models.BatchStatusDraft, models.BatchStatusSent},
		{models.BatchStatusReady, models.BatchStatusSent},
		{models.BatchStatusSent, models.BatchStatusReady},
		{models.BatchStatusProcessed, models.BatchStatusReady},
		{models.BatchStatusProcessed, models.BatchStatusSending},
		{models.BatchStatusPartial, models.BatchStatusProcessing},
		{models.BatchStatusError, models.BatchStatusSending},
	}

	for _, tc := range illegal {
		assert.False(t, CanTransitionBatch(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestCanTransitionClaim(t *testing.T) {
	legal := []struct {
		from, to models.ClaimStatus
	}{
		{models.ClaimStatusDraft, models.ClaimStatusValidated},
		{models.ClaimStatusValidated, models.ClaimStatusSubmitted},
		{models.ClaimStatusSubmitted, models.ClaimStatusUnderReview},
		{models.ClaimStatusUnderReview, models.ClaimStatusAuthorized},
		{models.ClaimStatusUnderReview, models.ClaimStatusDenied},
		{models.ClaimStatusUnderReview, models.ClaimStatusPartiallyDenied},
		{models.ClaimStatusUnderReview, models.ClaimStatusPaid},
		{models.ClaimStatusAuthorized, models.ClaimStatusPaid},
		{models.ClaimStatusDenied, models.ClaimStatusAppealed},
		{models.ClaimStatusPartiallyDenied, models.ClaimStatusAppealed},
		{models.ClaimStatusAppealed, models.ClaimStatusUnderReview},
	}

	for _, tc := range legal {
		assert.True(t, CanTransitionClaim(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct {
		from, to models.ClaimStatus
	}{
		{models.ClaimStatusDraft, models.ClaimStatusSubmitted},
		{models.ClaimStatusAuthorized, models.ClaimStatusAppealed},
		{models.ClaimStatusPaid, models.ClaimStatusUnderReview},
		{models.ClaimStatusDenied, models.ClaimStatusAuthorized},
	}

	for _, tc := range illegal {
		assert.False(t, CanTransitionClaim(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestLifecycleStateMachine_TransitionBatch(t *testing.T) {
	machine, batches, _ := newTestStateMachine()
	id := uuid.New()
	batches.statuses[id] = models.BatchStatusDraft

	t.Run("legal transition is applied", func(t *testing.T) {
		require.NoError(t, machine.TransitionBatch(id, models.BatchStatusDraft, models.BatchStatusValidating))
		assert.Equal(t, models.BatchStatusValidating, batches.statuses[id])
	})

	t.Run("illegal transition fails before touching storage", func(t *testing.T) {
		err := machine.TransitionBatch(id, models.BatchStatusValidating, models.BatchStatusSent)
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrorKindStateConflict))
		assert.Equal(t, models.BatchStatusValidating, batches.statuses[id])
	})

	t.Run("stale from status is a conflict", func(t *testing.T) {
		err := machine.TransitionBatch(id, models.BatchStatusDraft, models.BatchStatusValidating)
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrorKindStateConflict))
	})
}

func TestLifecycleStateMachine_ConcurrentSubmission(t *testing.T) {
	machine, batches, _ := newTestStateMachine()
	id := uuid.New()
	batches.statuses[id] = models.BatchStatusReady

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- machine.TransitionBatch(id, models.BatchStatusReady, models.BatchStatusSending)
		}()
	}

	first := <-results
	second := <-results

	// de dois envios concorrentes exatamente um vence
	winners := 0
	for _, err := range []error{first, second} {
		if err == nil {
			winners++
		} else {
			assert.True(t, models.IsKind(err, models.ErrorKindStateConflict))
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, models.BatchStatusSending, batches.statuses[id])
}

func TestLifecycleStateMachine_TransitionClaim(t *testing.T) {
	machine, _, claims := newTestStateMachine()
	id := uuid.New()
	claims.statuses[id] = models.ClaimStatusUnderReview

	require.NoError(t, machine.TransitionClaim(id, models.ClaimStatusUnderReview, models.ClaimStatusDenied))
	require.NoError(t, machine.TransitionClaim(id, models.ClaimStatusDenied, models.ClaimStatusAppealed))
	require.NoError(t, machine.TransitionClaim(id, models.ClaimStatusAppealed, models.ClaimStatusUnderReview))

	err := machine.TransitionClaim(id, models.ClaimStatusUnderReview, models.ClaimStatusValidated)
	assert.True(t, models.IsKind(err, models.ErrorKindStateConflict))
}

func TestLifecycleStateMachine_ApplyAppealOutcome(t *testing.T) {
	t.Run("approved appeal reopens and authorizes the claim", func(t *testing.T) {
		machine, _, claims := newTestStateMachine()
		id := uuid.New()
		claims.statuses[id] = models.ClaimStatusAppealed

		require.NoError(t, machine.ApplyAppealOutcome(id, models.ClaimOutcomeApproved))
		assert.Equal(t, models.ClaimStatusAuthorized, claims.statuses[id])
	})

	t.Run("upheld denial can be appealed again", func(t *testing.T) {
		machine, _, claims := newTestStateMachine()
		id := uuid.New()
		claims.statuses[id] = models.ClaimStatusAppealed

		require.NoError(t, machine.ApplyAppealOutcome(id, models.ClaimOutcomeFullyDenied))
		assert.Equal(t, models.ClaimStatusDenied, claims.statuses[id])
		assert.True(t, CanTransitionClaim(claims.statuses[id], models.ClaimStatusAppealed))
	})

	t.Run("pending outcome leaves the claim under review", func(t *testing.T) {
		machine, _, claims := newTestStateMachine()
		id := uuid.New()
		claims.statuses[id] = models.ClaimStatusAppealed

		require.NoError(t, machine.ApplyAppealOutcome(id, models.ClaimOutcomePending))
		assert.Equal(t, models.ClaimStatusUnderReview, claims.statuses[id])
	})

	t.Run("claim not under appeal is a conflict", func(t *testing.T) {
		machine, _, claims := newTestStateMachine()
		id := uuid.New()
		claims.statuses[id] = models.ClaimStatusAuthorized

		err := machine.ApplyAppealOutcome(id, models.ClaimOutcomeApproved)
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrorKindStateConflict))
		assert.Equal(t, models.ClaimStatusAuthorized, claims.statuses[id])
	})
}

func TestDeriveBatchStatus(t *testing.T) {
	cases := []struct {
		name     string
		outcomes []models.ClaimOutcome
		expected models.BatchStatus
	}{
		{
			"all approved",
			[]models.ClaimOutcome{models.ClaimOutcomeApproved, models.ClaimOutcomeApproved},
			models.BatchStatusProcessed,
		},
		{
			"some denials",
			[]models.ClaimOutcome{models.ClaimOutcomeApproved, models.ClaimOutcomePartiallyDenied},
			models.BatchStatusPartial,
		},
		{
			"one fully denied among approved",
			[]models.ClaimOutcome{models.ClaimOutcomeApproved, models.ClaimOutcomeFullyDenied},
			models.BatchStatusPartial,
		},
		{
			"everything denied",
			[]models.ClaimOutcome{models.ClaimOutcomeFullyDenied, models.ClaimOutcomeFullyDenied},
			models.BatchStatusError,
		},
		{
			"no outcomes",
			nil,
			models.BatchStatusError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DeriveBatchStatus(tc.outcomes))
		})
	}
}

func TestClaimStatusForOutcome(t *testing.T) {
	assert.Equal(t, models.ClaimStatusAuthorized, ClaimStatusForOutcome(models.ClaimOutcomeApproved))
	assert.Equal(t, models.ClaimStatusPartiallyDenied, ClaimStatusForOutcome(models.ClaimOutcomePartiallyDenied))
	assert.Equal(t, models.ClaimStatusDenied, ClaimStatusForOutcome(models.ClaimOutcomeFullyDenied))
	assert.Equal(t, models.ClaimStatusUnderReview, ClaimStatusForOutcome(models.ClaimOutcomePending))
}
