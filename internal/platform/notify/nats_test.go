// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/companion/internal/platform/notify"
)

const mailSubject = "companion.mail.outbound"

// runJetStream starts an in-process NATS server with JetStream enabled.
func runJetStream(t *testing.T) *server.Server {
	t.Helper()

	options := natstest.DefaultTestOptions
	options.Port = -1
	options.JetStream = true
	options.StoreDir = t.TempDir()

	srv := natstest.RunServer(&options)
	t.Cleanup(srv.Shutdown)
	return srv
}

// mailStream creates the stream the mail worker consumes from.
func mailStream(t *testing.T, url string) nats.JetStreamContext {
	t.Helper()

	conn, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	js, err := conn.JetStream()
	require.NoError(t, err)

	_, err = js.AddStream(&nats.StreamConfig{Name: "MAIL", Subjects: []string{mailSubject}})
	require.NoError(t, err)
	return js
}

/*
TestNATSNotifier_Publish verifies the subject, payload and dedup id of every mail kind.
*/
func TestNATSNotifier_Publish(t *testing.T) {
	srv := runJetStream(t)
	js := mailStream(t, srv.ClientURL())

	notifier, err := notify.NewNATSNotifier(srv.ClientURL(), mailSubject)
	require.NoError(t, err)
	t.Cleanup(notifier.Close)

	ctx := context.Background()

	// 1. One of each kind
	require.NoError(t, notifier.SendVerificationCode(ctx, "alice@example.com", "482913"))
	require.NoError(t, notifier.SendWelcome(ctx, "alice@example.com"))
	require.NoError(t, notifier.SendPasswordResetLink(ctx, "alice@example.com", "http://localhost:3000/reset-password?token=t"))

	// 2. Read them back in order
	subscription, err := js.SubscribeSync(mailSubject, nats.DeliverAll())
	require.NoError(t, err)

	want := []notify.MailJob{
		{Kind: notify.KindVerificationCode, To: "alice@example.com", Code: "482913"},
		{Kind: notify.KindWelcome, To: "alice@example.com"},
		{Kind: notify.KindPasswordResetLink, To: "alice@example.com", Link: "http://localhost:3000/reset-password?token=t"},
	}

	seenIDs := map[string]bool{}
	for _, expected := range want {
		message, err := subscription.NextMsg(2 * time.Second)
		require.NoError(t, err)

		var job notify.MailJob
		require.NoError(t, json.Unmarshal(message.Data, &job))
		assert.Equal(t, expected.Kind, job.Kind)
		assert.Equal(t, expected.To, job.To)
		assert.Equal(t, expected.Code, job.Code)
		assert.Equal(t, expected.Link, job.Link)
		assert.False(t, job.RequestedAt.IsZero())

		messageID := message.Header.Get(nats.MsgIdHdr)
		assert.NotEmpty(t, messageID)
		assert.False(t, seenIDs[messageID])
		seenIDs[messageID] = true
	}
}

/*
TestNATSNotifier_Failures surfaces a missing stream and a lost connection.
*/
func TestNATSNotifier_Failures(t *testing.T) {
	srv := runJetStream(t)

	notifier, err := notify.NewNATSNotifier(srv.ClientURL(), mailSubject, nats.MaxReconnects(0))
	require.NoError(t, err)
	t.Cleanup(notifier.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// 1. Healthy connection, but nothing stores the subject
	require.NoError(t, notifier.Ping(ctx))
	assert.Error(t, notifier.SendWelcome(ctx, "alice@example.com"))

	// 2. Server gone
	srv.Shutdown()
	assert.Eventually(t, func() bool {
		return notifier.Ping(ctx) != nil
	}, 2*time.Second, 20*time.Millisecond)
}

/*
TestNewNATSNotifier_RejectsEmptySubject fails before dialing.
*/
func TestNewNATSNotifier_RejectsEmptySubject(t *testing.T) {
	_, err := notify.NewNATSNotifier("nats://127.0.0.1:1", "")
	assert.Error(t, err)
}
