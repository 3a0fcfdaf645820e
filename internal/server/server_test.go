// Integration tests for the cfmock gRPC server
package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nainya/cfmock/internal/metrics"
	"github.com/nainya/cfmock/pkg/builder"
	"github.com/nainya/cfmock/pkg/resource"
	"github.com/nainya/cfmock/pkg/tagging"
)

const bufSize = 1024 * 1024

func setupTestServer(t *testing.T) (*Server, *Client, *metrics.Metrics, *grpc.ClientConn, func()) {
	repo := resource.NewRepository()
	server := NewServer(repo)
	m := metrics.New(prometheus.NewRegistry())

	// Create a new listener for this test
	lis := bufconn.Listen(bufSize)

	grpcServer, _ := NewGRPCServer(server, m, nil)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			// Server closed is expected during cleanup
		}
	}()

	// Create client with custom dialer
	bufDialer := func(context.Context, string) (net.Conn, error) {
		return lis.Dial()
	}

	ctx := context.Background()
	conn, err := grpc.DialContext(ctx, "bufnet",
		grpc.WithContextDialer(bufDialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to dial bufnet: %v", err)
	}

	cleanup := func() {
		conn.Close()
		grpcServer.Stop()
		lis.Close()
	}

	return server, NewClient(conn), m, conn, cleanup
}

func seedFragments(t *testing.T, server *Server) {
	err := server.Update(func(repo *resource.Repository) error {
		b := builder.New(repo)
		tag, err := b.Tag("news:sports")
		if err != nil {
			return err
		}

		cf, err := b.ContentFragmentStructured("/content/dam/test/article",
			"headline", "Hello", "count", 3)
		if err != nil {
			return err
		}
		cf.SetTitle("Article")
		if err := cf.SetTags([]*tagging.Tag{tag}); err != nil {
			return err
		}
		def, err := cf.CreateVariation("teaser", "Teaser", "short")
		if err != nil {
			return err
		}
		if _, err := cf.Element("headline").CreateVariation(def); err != nil {
			return err
		}

		_, err = b.ContentFragmentText("/content/dam/test/note", "<p>Text</p>", "text/html")
		return err
	})
	if err != nil {
		t.Fatalf("Failed to seed fragments: %v", err)
	}
}

func TestGetFragment(t *testing.T) {
	server, client, _, _, cleanup := setupTestServer(t)
	defer cleanup()
	seedFragments(t, server)

	ctx := context.Background()
	resp, err := client.GetFragment(ctx, "/content/dam/test/article")
	if err != nil {
		t.Fatalf("GetFragment failed: %v", err)
	}

	dump := resp.AsMap()
	if dump["name"] != "article" || dump["title"] != "Article" || dump["mode"] != "structured" {
		t.Errorf("Unexpected fragment header: %v", dump)
	}

	elements := dump["elements"].([]any)
	if len(elements) != 2 {
		t.Fatalf("Expected 2 elements, got %d", len(elements))
	}
	headline := elements[0].(map[string]any)
	if headline["name"] != "headline" || headline["content"] != "Hello" {
		t.Errorf("Unexpected headline: %v", headline)
	}
	count := elements[1].(map[string]any)
	if count["content"] != "3" {
		t.Errorf("Expected count content '3', got %v", count["content"])
	}
	variations := headline["variations"].([]any)
	if len(variations) != 1 || variations[0].(map[string]any)["title"] != "Teaser" {
		t.Errorf("Unexpected element variations: %v", variations)
	}

	defs := dump["variations"].([]any)
	if len(defs) != 1 || defs[0].(map[string]any)["name"] != "teaser" {
		t.Errorf("Unexpected variation definitions: %v", defs)
	}
	tags := dump["tags"].([]any)
	if len(tags) != 1 || tags[0] != "news:sports" {
		t.Errorf("Unexpected tags: %v", tags)
	}

	resp, err = client.GetFragment(ctx, "/content/dam/test/note")
	if err != nil {
		t.Fatalf("GetFragment failed: %v", err)
	}
	note := resp.AsMap()
	if note["mode"] != "text" {
		t.Errorf("Expected text mode, got %v", note["mode"])
	}
	if md := note["metadata"].(map[string]any); md["dc:format"] != "text/html" {
		t.Errorf("Expected dc:format text/html, got %v", md["dc:format"])
	}
	main := note["elements"].([]any)[0].(map[string]any)
	if main["content"] != "<p>Text</p>" || main["contentType"] != "text/html" {
		t.Errorf("Unexpected main element: %v", main)
	}
}

func TestGetFragmentErrors(t *testing.T) {
	server, client, _, _, cleanup := setupTestServer(t)
	defer cleanup()
	seedFragments(t, server)

	ctx := context.Background()
	cases := map[string]codes.Code{
		"":                          codes.InvalidArgument,
		"content/dam":               codes.InvalidArgument,
		"/content/dam/test/missing": codes.NotFound,
		"/content/dam/test":         codes.FailedPrecondition,
	}
	for p, want := range cases {
		_, err := client.GetFragment(ctx, p)
		if got := status.Code(err); got != want {
			t.Errorf("%q: expected %v, got %v (%v)", p, want, got, err)
		}
	}
}

func TestGetResource(t *testing.T) {
	server, client, _, _, cleanup := setupTestServer(t)
	defer cleanup()
	seedFragments(t, server)

	ctx := context.Background()
	resp, err := client.GetResource(ctx, "/content/dam/test/article/jcr:content/data/master", 0)
	if err != nil {
		t.Fatalf("GetResource failed: %v", err)
	}
	dump := resp.AsMap()
	props := dump["properties"].(map[string]any)
	if props["headline"] != "Hello" || props["count"] != float64(3) {
		t.Errorf("Unexpected properties: %v", props)
	}
	if _, ok := dump["children"]; ok {
		t.Error("Depth 0 must not include children")
	}

	resp, err = client.GetResource(ctx, "/content/dam/test", 1)
	if err != nil {
		t.Fatalf("GetResource failed: %v", err)
	}
	children := resp.AsMap()["children"].([]any)
	if len(children) != 2 {
		t.Fatalf("Expected 2 children, got %d", len(children))
	}
	first := children[0].(map[string]any)
	if first["name"] != "article" || first["type"] != "dam:Asset" || first["hasChildren"] != true {
		t.Errorf("Unexpected child: %v", first)
	}
	if _, ok := first["children"]; ok {
		t.Error("Depth 1 must not include grandchildren")
	}

	if _, err := client.GetResource(ctx, "/nope", 0); status.Code(err) != codes.NotFound {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

func TestStatsAndMetrics(t *testing.T) {
	server, client, m, _, cleanup := setupTestServer(t)
	defer cleanup()
	seedFragments(t, server)

	ctx := context.Background()
	client.GetFragment(ctx, "/content/dam/test/article")
	client.GetFragment(ctx, "/content/dam/test/missing")

	resp, err := client.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	stats := resp.AsMap()
	if stats["version"] != Version {
		t.Errorf("Expected version %s, got %v", Version, stats["version"])
	}
	ops := stats["operationCounts"].(map[string]any)
	if ops["GetFragment"] != float64(2) {
		t.Errorf("Expected 2 GetFragment calls, got %v", ops["GetFragment"])
	}

	if got := testutil.ToFloat64(m.GrpcRequestsTotal.WithLabelValues(MethodGetFragment, "success")); got != 1 {
		t.Errorf("Expected 1 successful GetFragment, got %v", got)
	}
	if got := testutil.ToFloat64(m.GrpcRequestsTotal.WithLabelValues(MethodGetFragment, "error")); got != 1 {
		t.Errorf("Expected 1 failed GetFragment, got %v", got)
	}
}

func TestHealth(t *testing.T) {
	_, _, _, conn, cleanup := setupTestServer(t)
	defer cleanup()

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Health check failed: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING, got %v", resp.Status)
	}
}

func TestConcurrentReads(t *testing.T) {
	server, client, _, _, cleanup := setupTestServer(t)
	defer cleanup()
	seedFragments(t, server)

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.GetFragment(ctx, "/content/dam/test/article"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Concurrent GetFragment failed: %v", err)
	}
}

func TestObservabilityEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncFixturesLoaded()

	obs := NewObservabilityServer(0, reg, nil)
	srv := httptest.NewServer(obs.Handler())
	defer srv.Close()

	get := func(p string) (int, string) {
		resp, err := http.Get(srv.URL + p)
		if err != nil {
			t.Fatalf("Failed to GET %s: %v", p, err)
		}
		defer resp.Body.Close()
		buf := new(strings.Builder)
		if _, err := io.Copy(buf, resp.Body); err != nil {
			t.Fatalf("Failed to read %s: %v", p, err)
		}
		return resp.StatusCode, buf.String()
	}

	if code, body := get("/health"); code != http.StatusOK || !strings.Contains(body, "cfmock") {
		t.Errorf("Unexpected /health: %d %s", code, body)
	}
	if code, _ := get("/ready"); code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 before ready, got %d", code)
	}
	obs.SetReady(true)
	if code, _ := get("/ready"); code != http.StatusOK {
		t.Errorf("Expected 200 when ready, got %d", code)
	}
	if code, body := get("/metrics"); code != http.StatusOK || !strings.Contains(body, "cfmock_fixtures_loaded_total 1") {
		t.Errorf("Unexpected /metrics: %d", code)
	}
}
