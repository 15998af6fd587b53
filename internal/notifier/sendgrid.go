package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a rejected HTTP-API send.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("email api: status %d: %s", e.Status, e.Body)
}

// SendGridMailer posts to the SendGrid v3 mail/send endpoint.
type SendGridMailer struct {
	URL    string
	APIKey string
	Client *http.Client
}

func (m *SendGridMailer) Name() string { return "sendgrid" }

type sgAddress struct {
	Email string `json:"email"`
}

type sgPayload struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Content          []sgContent         `json:"content"`
}

type sgPersonalization struct {
	To      []sgAddress `json:"to"`
	Subject string      `json:"subject"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (m *SendGridMailer) Send(ctx context.Context, msg *Message) error {
	p := sgPayload{
		From:    sgAddress{Email: msg.From},
		Content: []sgContent{{Type: "text/html", Value: msg.HTML}},
	}
	pers := sgPersonalization{Subject: msg.Subject}
	for _, addr := range msg.To {
		pers.To = append(pers.To, sgAddress{Email: addr})
	}
	p.Personalizations = []sgPersonalization{pers}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
