package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/pushsubscription"
)

type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Sender delivers web push messages. Delivery is best effort: failures are
// logged and never propagate to the workflow that triggered them.
type Sender struct {
	vapidEnv *config.VAPIDEnv
	subs     pushsubscription.Repository
}

func NewSender(vapidEnv *config.VAPIDEnv, subs pushsubscription.Repository) *Sender {
	return &Sender{
		vapidEnv: vapidEnv,
		subs:     subs,
	}
}

func (s *Sender) SendToUser(ctx context.Context, userID string, payload *PushPayload) {
	if s.vapidEnv.VAPIDPrivateKey == "" || s.vapidEnv.VAPIDPublicKey == "" {
		slog.Warn("push: VAPID keys not configured, skipping")
		return
	}

	subs, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "push: failed to list subscriptions", "user_id", userID, "error", err)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "push: failed to marshal payload", "error", err)
		return
	}

	for _, sub := range subs {
		s.sendToSubscription(ctx, sub, data)
	}
}

func (s *Sender) sendToSubscription(ctx context.Context, sub *pushsubscription.Subscription, data []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}

	resp, err := webpush.SendNotification(data, wpSub, &webpush.Options{
		VAPIDPublicKey:  s.vapidEnv.VAPIDPublicKey,
		VAPIDPrivateKey: s.vapidEnv.VAPIDPrivateKey,
		Subscriber:      s.vapidEnv.VAPIDContact,
		TTL:             86400,
	})
	if err != nil {
		slog.ErrorContext(ctx, "push: failed to send", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		slog.InfoContext(ctx, "push: subscription expired, removing", "endpoint", sub.Endpoint)
		if err := s.subs.Delete(ctx, sub.ID); err != nil {
			slog.ErrorContext(ctx, "push: failed to delete expired subscription", "id", sub.ID, "error", err)
		}
		return
	}

	if resp.StatusCode >= 400 {
		slog.WarnContext(ctx, "push: unexpected status", "endpoint", sub.Endpoint, "status", resp.StatusCode)
	}
}
