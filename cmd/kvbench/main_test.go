package main

import (
	"testing"

	"kvbench/internal/bench/client"
)

func TestSplitHosts(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"127.0.0.1:6379", []string{"127.0.0.1:6379"}},
		{"a:1, b:2 ,c:3", []string{"a:1", "b:2", "c:3"}},
		{" , ", nil},
	}
	for _, c := range cases {
		got := splitHosts(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("splitHosts(%q) = %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("splitHosts(%q) = %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestBuildClientMock(t *testing.T) {
	kv, closeKV, code := buildClient("mock", "", "ns", "set")
	if code != exitOK {
		t.Fatalf("buildClient(mock) code = %d, want exitOK", code)
	}
	defer closeKV()
	if _, ok := kv.(*client.Mock); !ok {
		t.Fatalf("buildClient(mock) returned %T, want *client.Mock", kv)
	}
}

func TestBuildClientUnknownBackend(t *testing.T) {
	_, _, code := buildClient("dynamodb", "", "ns", "set")
	if code != exitUsage {
		t.Fatalf("buildClient(unknown) code = %d, want exitUsage", code)
	}
}

func TestBuildClientMissingHost(t *testing.T) {
	for _, backend := range []string{"redis", "postgres"} {
		_, _, code := buildClient(backend, "", "ns", "set")
		if code != exitUsage {
			t.Fatalf("buildClient(%s, host=\"\") code = %d, want exitUsage", backend, code)
		}
	}
}
