package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/wolfman30/patient-portal/cmd/mainconfig"
	"github.com/wolfman30/patient-portal/internal/api/router"
	"github.com/wolfman30/patient-portal/internal/app/bootstrap"
	appconfig "github.com/wolfman30/patient-portal/internal/config"
	"github.com/wolfman30/patient-portal/internal/http/handlers"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// The Lambda serves the JSON portal API only. Websocket chat needs the
// long-running server in cmd/api.
func main() {
	ctx := context.Background()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.PortalJWTSecret == "" {
		panic("PORTAL_JWT_SECRET is required")
	}

	var (
		pool  *pgxpool.Pool
		sqlDB *sql.DB
		err   error
	)
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			panic(err)
		}
		sqlDB = stdlib.OpenDBFromPool(pool)
	}

	var awsCfg *aws.Config
	if loaded, err := mainconfig.LoadAWSConfig(ctx, cfg); err == nil {
		awsCfg = &loaded
	} else {
		logger.Warn("AWS config unavailable", "error", err)
	}

	app, err := bootstrap.BuildPortal(ctx, cfg, bootstrap.Infra{
		Pool:  pool,
		SQLDB: sqlDB,
		Redis: bootstrap.BuildRedisClient(ctx, cfg, logger, false),
		AWS:   awsCfg,
	}, logger)
	if err != nil {
		panic(err)
	}

	h := router.New(&router.Config{
		Logger:             logger,
		Portal:             handlers.NewPortalHandler(app.Portal, cfg.PortalJWTSecret, bootstrap.DefaultTokenTTL(cfg), logger),
		JWTSecret:          cfg.PortalJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return handle(ctx, h, evt)
	})
}

func handle(ctx context.Context, h http.Handler, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		path += "?" + qs
	}

	body, err := decodeBody(evt)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid body"}, nil
	}

	req, err := http.NewRequestWithContext(ctx, method, path, bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid request"}, nil
	}
	for k, v := range evt.Headers {
		req.Header.Set(k, v)
	}
	if ip := strings.TrimSpace(evt.RequestContext.HTTP.SourceIP); ip != "" {
		req.RemoteAddr = ip + ":0"
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	res := rec.Result()
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	out := events.APIGatewayV2HTTPResponse{
		StatusCode: res.StatusCode,
		Body:       string(respBody),
		Headers:    map[string]string{},
	}
	for k := range res.Header {
		out.Headers[strings.ToLower(k)] = res.Header.Get(k)
	}
	return out, nil
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(evt.Body)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}
