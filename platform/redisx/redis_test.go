package redisx

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

type redisConfig struct {
	url      string
	insecure bool
}

func (c redisConfig) GetRedisURL() string       { return c.url }
func (c redisConfig) GetRedisTLSInsecure() bool { return c.insecure }

func TestOptionsRequireURL(t *testing.T) {
	if _, err := Options(redisConfig{}); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := Options(redisConfig{url: "http://nope"}); err == nil {
		t.Fatal("expected error for non redis scheme")
	}
}

func TestOptionsApplyInsecureTLS(t *testing.T) {
	opt, err := Options(redisConfig{url: "rediss://cache.internal:6380/2", insecure: true})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatal("expected insecure TLS config")
	}
	if opt.DB != 2 || opt.Addr != "cache.internal:6380" {
		t.Fatalf("unexpected options %s db=%d", opt.Addr, opt.DB)
	}
}

func TestNewClientPings(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := NewClient(context.Background(), redisConfig{url: "redis://" + addr})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	mr.Close()
	if _, err := NewClient(context.Background(), redisConfig{url: "redis://" + addr}); err == nil {
		t.Fatal("expected ping failure once the server is gone")
	}
}
