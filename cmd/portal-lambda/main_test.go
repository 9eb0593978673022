package main

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func echoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("X-Path", r.URL.Path+"?"+r.URL.RawQuery)
		w.Header().Set("X-Auth", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write(body)
	})
}

func TestHandleTranslatesRequest(t *testing.T) {
	evt := events.APIGatewayV2HTTPRequest{
		RawPath:        "/portal/documents",
		RawQueryString: "type=exam",
		Headers:        map[string]string{"authorization": "Bearer abc"},
		Body:           "hello",
	}
	evt.RequestContext.HTTP.Method = "post"

	resp, err := handle(context.Background(), echoHandler(), evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if resp.Body != "hello" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	if resp.Headers["x-path"] != "/portal/documents?type=exam" {
		t.Fatalf("unexpected path %q", resp.Headers["x-path"])
	}
	if resp.Headers["x-auth"] != "Bearer abc" {
		t.Fatalf("authorization header not forwarded: %q", resp.Headers["x-auth"])
	}
}

func TestHandleDecodesBase64Body(t *testing.T) {
	evt := events.APIGatewayV2HTTPRequest{
		RawPath:         "/portal/chat",
		Body:            base64.StdEncoding.EncodeToString([]byte(`{"message":"hi"}`)),
		IsBase64Encoded: true,
	}
	evt.RequestContext.HTTP.Method = http.MethodPost

	resp, _ := handle(context.Background(), echoHandler(), evt)
	if resp.Body != `{"message":"hi"}` {
		t.Fatalf("unexpected body %q", resp.Body)
	}
}

func TestHandleRejectsBadBase64(t *testing.T) {
	evt := events.APIGatewayV2HTTPRequest{RawPath: "/portal/chat", Body: "%%%", IsBase64Encoded: true}
	evt.RequestContext.HTTP.Method = http.MethodPost

	resp, _ := handle(context.Background(), echoHandler(), evt)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
