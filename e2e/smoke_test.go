//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const repoRootRel = ".."   // relative to ./e2e
const mainPkgRel = "./cmd" // main.go lives in cmd/

const mosquittoPort = nat.Port("1883/tcp")

type stateBody struct {
	State        string `json:"state"`
	WindowSize   int    `json:"windowSize"`
	Window       []any  `json:"window"`
	HasReading   bool   `json:"hasReading"`
	Datagrams    uint64 `json:"datagrams"`
	DecodeErrors uint64 `json:"decodeErrors"`
	Log          []struct {
		Raw   string `json:"raw"`
		Error string `json:"error"`
	} `json:"log"`
}

func TestSmoke_IngestAndServe(t *testing.T) {
	repoRoot := repoRootPath(t)
	bin := buildBinary(t, repoRoot)
	httpAddr := pickFreeAddr(t)
	udpAddr := pickFreeUDPAddr(t)

	cmd := startServer(t, bin,
		"HTTP_ADDR="+httpAddr,
		"UDP_ADDR="+udpAddr,
		"POLL_INTERVAL=50ms",
	)

	client := &http.Client{Timeout: 2 * time.Second}
	base := "http://" + httpAddr
	waitForOK(t, client, base+"/healthz", 10*time.Second)

	conn, err := net.Dial("udp", udpAddr)
	require.NoError(t, err)
	defer conn.Close()

	lines := []string{
		"SOIL1=40;SOIL2=55;AMB=60;RAIN=0;TANK=80;TEMP=25",
		"SOIL1=41;SOIL2=54;AMB=61;RAIN=1;TANK=79;TEMP=25",
		"SOIL1=oops;TANK=80",
	}
	for _, l := range lines {
		_, err := conn.Write([]byte(l))
		require.NoError(t, err)
	}

	var st stateBody
	require.Eventually(t, func() bool {
		st = getState(t, client, base)
		return st.Datagrams == 3
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, 20, st.WindowSize)
	assert.Len(t, st.Window, 2)
	assert.True(t, st.HasReading)
	assert.Equal(t, uint64(1), st.DecodeErrors)
	require.Len(t, st.Log, 3)
	assert.Equal(t, lines[2], st.Log[2].Raw)
	assert.NotEmpty(t, st.Log[2].Error)

	for _, path := range []string{"/", "/partials/status", "/partials/charts", "/partials/gauges", "/partials/log", "/log.txt"} {
		resp, err := client.Get(base + path)
		require.NoError(t, err, path)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := client.Get(base + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stopServer(t, cmd)
}

func TestSmoke_ForwardsToMQTT(t *testing.T) {
	broker, port := startMosquitto(t)

	repoRoot := repoRootPath(t)
	bin := buildBinary(t, repoRoot)
	httpAddr := pickFreeAddr(t)
	udpAddr := pickFreeUDPAddr(t)

	received := make(chan []byte, 16)
	sub := paho.NewClient(paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", broker, port)).
		SetClientID("riego-e2e-subscriber"))
	tok := sub.Connect()
	require.True(t, tok.WaitTimeout(10*time.Second))
	require.NoError(t, tok.Error())
	t.Cleanup(func() { sub.Disconnect(250) })

	tok = sub.Subscribe("e2e/telemetry", 1, func(_ paho.Client, m paho.Message) {
		received <- m.Payload()
	})
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())

	cmd := startServer(t, bin,
		"HTTP_ADDR="+httpAddr,
		"UDP_ADDR="+udpAddr,
		"MQTT_ENABLED=true",
		"MQTT_BROKER="+broker,
		fmt.Sprintf("MQTT_PORT=%d", port),
		"MQTT_TOPIC_PREFIX=e2e",
	)
	client := &http.Client{Timeout: 2 * time.Second}
	waitForOK(t, client, "http://"+httpAddr+"/healthz", 10*time.Second)

	conn, err := net.Dial("udp", udpAddr)
	require.NoError(t, err)
	defer conn.Close()

	// The client connects in the background, so keep sending until a
	// message makes it through.
	deadline := time.After(20 * time.Second)
	for {
		_, err := conn.Write([]byte("SOIL1=40;SOIL2=55;AMB=60;RAIN=1;TANK=80;TEMP=25"))
		require.NoError(t, err)

		select {
		case payload := <-received:
			var msg map[string]any
			require.NoError(t, json.Unmarshal(payload, &msg))
			assert.EqualValues(t, 40, msg["soil1"])
			assert.EqualValues(t, 80, msg["tank"])
			assert.Equal(t, true, msg["raining"])
			stopServer(t, cmd)
			return
		case <-deadline:
			t.Fatal("no telemetry message reached the broker")
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func startMosquitto(t *testing.T) (string, int) {
	t.Helper()

	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2",
		ExposedPorts: []string{string(mosquittoPort)},
		// The image ships a config that listens on all interfaces without auth.
		Cmd:        []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor: wait.ForListeningPort(mosquittoPort).WithStartupTimeout(30 * time.Second),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mosquitto container: %v", err)
	}

	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("mosquitto host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, mosquittoPort)
	if err != nil {
		t.Fatalf("mosquitto port: %v", err)
	}

	return host, mapped.Int()
}

func startServer(t *testing.T, bin string, env ...string) *exec.Cmd {
	t.Helper()

	cmd := exec.Command(bin, "serve")
	cmd.Env = append(os.Environ(), "APP_ENV=dev", "LOG_LEVEL=info")
	cmd.Env = append(cmd.Env, env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})
	return cmd
}

func getState(t *testing.T, client *http.Client, base string) stateBody {
	t.Helper()

	resp, err := client.Get(base + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}

	var body stateBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	return body
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	if _, err := os.Stat(filepath.Join(repo, "go.mod")); err != nil {
		t.Fatalf("repo root %q does not contain go.mod: %v", repo, err)
	}

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	tmp := t.TempDir()
	out := filepath.Join(tmp, "riego-dashboard")

	build := exec.Command("go", "build", "-o", out, mainPkgRel)
	build.Dir = repoRoot
	build.Env = os.Environ()

	b, err := build.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(b))
	}

	return out
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen :0: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

func pickFreeUDPAddr(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp :0: %v", err)
	}
	defer pc.Close()

	return pc.LocalAddr().String()
}

func waitForOK(t *testing.T, client *http.Client, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server not healthy after %s: %s", timeout, url)
}

func stopServer(t *testing.T, cmd *exec.Cmd) {
	t.Helper()

	_ = cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		t.Fatalf("server did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("server exited non-zero: %v", err)
			}
			t.Fatalf("server wait error: %v", err)
		}
	}
}
