package notify

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydronote/groundwatch/internal/domain"
	"github.com/hydronote/groundwatch/internal/store"
)

func setupTestDispatcher(t *testing.T) (*Dispatcher, *store.Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	st, err := store.New(mr.Addr())
	require.NoError(t, err)

	return NewDispatcher(st, nil), st, mr
}

func TestEmit_WritesInbox(t *testing.T) {
	d, st, mr := setupTestDispatcher(t)
	defer mr.Close()
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	n := domain.NewNotification("org-1", "user-1", "Elevated risk detected", "well w-1 is projected high risk", domain.SeverityWarning)
	n.Related = &domain.RelatedRef{Kind: "forecast", ID: "f-1"}
	d.Emit(ctx, n)

	inbox, err := st.NotificationsFor(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Elevated risk detected", inbox[0].Title)
	require.NotNil(t, inbox[0].Related)
	assert.Equal(t, "f-1", inbox[0].Related.ID)
	assert.Nil(t, inbox[0].ReadAt)
}

func TestEmit_EmailRequestedWithoutSender(t *testing.T) {
	d, st, mr := setupTestDispatcher(t)
	defer mr.Close()
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	n := domain.NewNotification("org-1", "user-1", "t", "b", domain.SeverityCritical)
	n.Email = true

	// Email channel without a configured sender is a no-op; the inbox
	// write still happens.
	d.Emit(ctx, n)

	inbox, err := st.NotificationsFor(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, inbox, 1)
}

func TestNewEmailSenderFromEnv_Unconfigured(t *testing.T) {
	t.Setenv("EMAIL_API_KEY", "")
	t.Setenv("ALERT_EMAIL_TO", "")

	assert.Nil(t, NewEmailSenderFromEnv())
}

func TestNewEmailSenderFromEnv_Configured(t *testing.T) {
	t.Setenv("EMAIL_API_KEY", "SG.test")
	t.Setenv("ALERT_EMAIL_TO", "ops@example.com")
	t.Setenv("FROM_NAME", "GroundWatch")
	t.Setenv("FROM_ADDRESS", "noreply@example.com")

	s := NewEmailSenderFromEnv()
	require.NotNil(t, s)
	assert.Equal(t, "ops@example.com", s.to)
}
