package dns

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// startServer runs a UDP DNS server that knows three zones: one with MX,
// one with only an A record and one with nothing at all.
func startServer(t *testing.T) string {
	t.Helper()

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		switch {
		case q.Name == "shop.example." && q.Qtype == dns.TypeMX:
			rr, _ := dns.NewRR("shop.example. 300 IN MX 10 mail.shop.example.")
			m.Answer = append(m.Answer, rr)
		case q.Name == "bare.example." && q.Qtype == dns.TypeA:
			rr, _ := dns.NewRR("bare.example. 300 IN A 192.0.2.10")
			m.Answer = append(m.Answer, rr)
		case q.Name == "shop.example." || q.Name == "bare.example." || q.Name == "empty.example.":
		default:
			m.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("dns server did not start")
	}
	return pc.LocalAddr().String()
}

func TestHasMX(t *testing.T) {
	r := &MXResolver{Servers: []string{startServer(t)}, Timeout: time.Second}
	ctx := context.Background()

	cases := []struct {
		domain string
		want   bool
	}{
		{"shop.example", true},
		{"bare.example", true},
		{"empty.example", false},
		{"missing.example", false},
	}
	for _, tc := range cases {
		t.Run(tc.domain, func(t *testing.T) {
			ok, err := r.HasMX(ctx, tc.domain)
			require.NoError(t, err)
			require.Equal(t, tc.want, ok)
		})
	}
}

func TestHasMXRejectsEmptyDomain(t *testing.T) {
	_, err := NewMXResolver().HasMX(context.Background(), " ")
	require.Error(t, err)
}
