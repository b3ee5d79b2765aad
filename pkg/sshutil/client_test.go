package sshutil

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/logger"
	"golang.org/x/crypto/ssh"
)

// isolateHome points HOME at an empty directory so the developer's keys,
// agent and ssh config can't leak into tests.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SSH_AUTH_SOCK", "")
	return home
}

type execHandler func(cmd string) (stdout string, exitCode uint32)

// startTestServer runs an in-process SSH server that accepts user "admin"
// with the given password and answers exec requests with handler.
func startTestServer(t *testing.T, password string, handler execHandler) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("host key signer: %v", err)
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == "admin" && string(pass) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %s", c.User())
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go serveTestConn(nc, cfg, handler)
		}
	}()
	return ln.Addr().String()
}

func serveTestConn(nc net.Conn, cfg *ssh.ServerConfig, handler execHandler) {
	sconn, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		nc.Close()
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "only sessions") //nolint:errcheck
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go func() {
			defer ch.Close()
			for req := range chReqs {
				if req.Type != "exec" {
					req.Reply(false, nil) //nolint:errcheck
					continue
				}
				var payload struct{ Command string }
				if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
					req.Reply(false, nil) //nolint:errcheck
					return
				}
				req.Reply(true, nil) //nolint:errcheck
				out, code := handler(payload.Command)
				io.WriteString(ch, out) //nolint:errcheck
				ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{code})) //nolint:errcheck
				return
			}
		}()
	}
}

func TestDialContext_PasswordAuthAndExec(t *testing.T) {
	isolateHome(t)
	addr := startTestServer(t, "pw", func(cmd string) (string, uint32) {
		if cmd == "fail" {
			return "", 3
		}
		return "ran: " + cmd, 0
	})

	client, err := DialContext(context.Background(), addr, DialOptions{User: "admin", Password: "pw"})
	if err != nil {
		t.Fatalf("DialContext failed: %v", err)
	}
	defer client.Close()

	if client.GetAddress() != addr {
		t.Errorf("address = %q, want %q", client.GetAddress(), addr)
	}

	stdout, _, code, err := client.ExecContext(context.Background(), "hello")
	if err != nil {
		t.Fatalf("ExecContext failed: %v", err)
	}
	if code != 0 || string(stdout) != "ran: hello" {
		t.Errorf("got (%q, %d), want (\"ran: hello\", 0)", stdout, code)
	}

	_, _, code, err = client.ExecContext(context.Background(), "fail")
	if err != nil {
		t.Fatalf("non-zero exit should not be an error: %v", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}

	if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
		t.Errorf("keepalive failed on a live connection: %v", err)
	}
}

func TestDialContext_WrongPassword(t *testing.T) {
	isolateHome(t)
	addr := startTestServer(t, "pw", func(string) (string, uint32) { return "", 0 })

	_, err := DialContext(context.Background(), addr, DialOptions{User: "admin", Password: "nope"})
	if err == nil {
		t.Fatal("expected auth failure")
	}
	if !errors.IsCode(err, errors.ErrSSH) {
		t.Errorf("expected SSH error code, got %v", err)
	}
	if !strings.Contains(err.Error(), "rejected the saved credentials") {
		t.Errorf("error should point at the saved credentials: %v", err)
	}
}

func TestDialContext_NoAuthMethods(t *testing.T) {
	isolateHome(t)

	_, err := DialContext(context.Background(), "127.0.0.1:1", DialOptions{User: "admin"})
	if err == nil {
		t.Fatal("expected error without any auth method")
	}
	if !strings.Contains(err.Error(), "No SSH auth methods available") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDialContext_UnknownHostKeyWhenStrict(t *testing.T) {
	home := isolateHome(t)
	addr := startTestServer(t, "pw", func(string) (string, uint32) { return "", 0 })

	_, err := DialContext(context.Background(), addr, DialOptions{
		User:                  "admin",
		Password:              "pw",
		StrictHostKeyChecking: true,
		KnownHostsPath:        filepath.Join(home, "kh", "known_hosts"),
	})
	if err == nil {
		t.Fatal("expected host key failure with an empty known_hosts")
	}
	if !strings.Contains(err.Error(), "Host key issue") {
		t.Errorf("unexpected error: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(home, "kh", "known_hosts")); statErr != nil {
		t.Errorf("known_hosts should be created: %v", statErr)
	}
}

func TestDialContext_HandshakeInterrupted(t *testing.T) {
	isolateHome(t)

	// A listener that accepts but never speaks SSH.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			defer c.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = DialContext(ctx, ln.Addr().String(), DialOptions{User: "admin", Password: "pw"})
	if err == nil {
		t.Fatal("expected interrupted handshake")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("dial took %v, should stop when ctx ends", time.Since(start))
	}
	if !strings.Contains(err.Error(), "interrupted") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExecContext_Cancelled(t *testing.T) {
	isolateHome(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	addr := startTestServer(t, "pw", func(string) (string, uint32) {
		<-release
		return "", 0
	})

	client, err := DialContext(context.Background(), addr, DialOptions{User: "admin", Password: "pw"})
	if err != nil {
		t.Fatalf("DialContext failed: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, code, err := client.ExecContext(ctx, "hang")
	if err != context.DeadlineExceeded {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
	if code != -1 {
		t.Errorf("exit code = %d, want -1", code)
	}
}

func TestResolveSSHSettings(t *testing.T) {
	isolateHome(t)
	t.Setenv("USER", "localuser")

	tests := []struct {
		host     string
		opts     DialOptions
		wantHost string
		wantPort string
		wantUser string
	}{
		{"vc.lab", DialOptions{}, "vc.lab", "22", "localuser"},
		{"root@vc.lab", DialOptions{User: "admin"}, "vc.lab", "22", "root"},
		{"vc.lab:2222", DialOptions{}, "vc.lab", "2222", "localuser"},
		{"vc.lab", DialOptions{Port: 2200, User: "admin"}, "vc.lab", "2200", "admin"},
		{"admin@10.0.0.5:2222", DialOptions{}, "10.0.0.5", "2222", "admin"},
	}

	for _, tt := range tests {
		s := resolveSSHSettings(tt.host, tt.opts)
		if s.hostname != tt.wantHost || s.port != tt.wantPort || s.user != tt.wantUser {
			t.Errorf("resolveSSHSettings(%q) = %s:%s user %s, want %s:%s user %s",
				tt.host, s.hostname, s.port, s.user, tt.wantHost, tt.wantPort, tt.wantUser)
		}
	}
}

func TestResolveSSHSettings_FromConfig(t *testing.T) {
	home := isolateHome(t)
	cfgPath := filepath.Join(home, "ssh_config")
	content := "Host vcenter\n  HostName 10.0.0.5\n  Port 2222\n  User ops\n  IdentityFile ~/.ssh/vc_key\n" +
		"Match host *\n  User nobody\nHost later\n  HostName 10.0.0.9\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	s := resolveSSHSettings("vcenter", DialOptions{SSHConfigPath: cfgPath})
	if s.hostname != "10.0.0.5" || s.port != "2222" || s.user != "ops" {
		t.Errorf("got %s:%s user %s", s.hostname, s.port, s.user)
	}
	if s.identityFile != filepath.Join(home, ".ssh", "vc_key") {
		t.Errorf("identityFile = %q", s.identityFile)
	}

	// The profile's username wins over the config's User.
	s = resolveSSHSettings("vcenter", DialOptions{SSHConfigPath: cfgPath, User: "admin"})
	if s.user != "admin" {
		t.Errorf("user = %q, want admin", s.user)
	}

	// Hosts after a Match block are invisible and produce one warning.
	log := logger.NewBufferLogger()
	s = resolveSSHSettings("later", DialOptions{SSHConfigPath: cfgPath, Log: log})
	if s.hostname != "later" {
		t.Errorf("hostname = %q, want later", s.hostname)
	}
}

func TestExpandPath(t *testing.T) {
	home := homeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
	}

	for _, tt := range tests {
		if result := expandPath(tt.input); result != tt.expected {
			t.Errorf("expandPath(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestSuggestionForDialError(t *testing.T) {
	tests := []struct {
		errMsg   string
		contains string
	}{
		{"connection refused", "Is SSH enabled"},
		{"no route to host", "Can't route"},
		{"i/o timeout", "firewall"},
		{"lookup vc.lab: no such host", "doesn't resolve"},
		{"random error", "ping"},
	}

	for _, tt := range tests {
		suggestion := suggestionForDialError(fmt.Errorf("%s", tt.errMsg))
		if !strings.Contains(suggestion, tt.contains) {
			t.Errorf("suggestionForDialError(%q) = %q, want to contain %q", tt.errMsg, suggestion, tt.contains)
		}
	}
}

func TestSuggestionForHandshakeError(t *testing.T) {
	tests := []struct {
		errMsg       string
		encrypted    []string
		usedPassword bool
		contains     string
	}{
		{"unable to authenticate", nil, true, "vmhop profile update"},
		{"unable to authenticate", []string{"/k/id_ed25519"}, false, "ssh-add"},
		{"unable to authenticate", nil, false, "Auth failed"},
		{"knownhosts: key is unknown, host key", nil, true, "Host key issue"},
		{"random error", nil, false, "Something went wrong"},
	}

	for _, tt := range tests {
		suggestion := suggestionForHandshakeError(fmt.Errorf("%s", tt.errMsg), tt.encrypted, tt.usedPassword)
		if !strings.Contains(suggestion, tt.contains) {
			t.Errorf("suggestionForHandshakeError(%q) = %q, want to contain %q", tt.errMsg, suggestion, tt.contains)
		}
	}
}

func TestPreprocessSSHConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte("Host a\n  HostName 1.2.3.4\nMatch all\nHost b\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	content, line, err := preprocessSSHConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if line != 3 {
		t.Errorf("match line = %d, want 3", line)
	}
	if strings.Contains(string(content), "Host b") {
		t.Errorf("content after Match should be dropped: %q", content)
	}
}
