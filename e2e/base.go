// Package e2e drives the full client stack against the stub
// marketplace server over real HTTP and websockets.
package e2e

import (
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"

	"market-chat/auth"
	"market-chat/contract"
	"market-chat/internal/devserver"
	"market-chat/transport/rest"
)

type BaseSuite struct {
	suite.Suite
	Config Config
	Signer auth.Signer
	Log    *slog.Logger

	// Stub is nil when SERVER_ADDR points at an external process.
	Stub    *devserver.Server
	ts      *httptest.Server
	baseURL string
}

func (s *BaseSuite) SetupSuite() {
	cfg, err := LoadConfig()
	s.Require().NoError(err, "Failed to load e2e config")
	s.Config = cfg
	s.Signer = auth.NewSigner([]byte(cfg.AuthSecret))
	s.Log = slog.Default()

	if cfg.ServerAddr != "" {
		s.baseURL = "http://" + cfg.ServerAddr
		s.Banner("Using external stub server at %s", s.baseURL)
		return
	}

	s.Stub = devserver.New(s.Signer, s.Log)
	s.ts = httptest.NewServer(s.Stub.Handler())
	s.baseURL = s.ts.URL
	s.Banner("Booted in-process stub server at %s", s.baseURL)
}

func (s *BaseSuite) TearDownSuite() {
	if s.ts != nil {
		s.ts.Close()
	}
}

func (s *BaseSuite) BaseURL() string { return s.baseURL }

func (s *BaseSuite) PushURL() string {
	return "ws" + strings.TrimPrefix(s.baseURL, "http") + "/api/push"
}

// TokenFor mints a client-side token source for a user, matching what
// the real app does after login.
func (s *BaseSuite) TokenFor(userID string) contract.TokenSource {
	return auth.NewSelfIssuedTokenSource(s.Signer, userID, time.Hour)
}

func (s *BaseSuite) RestClient(userID string) *rest.Client {
	client, err := rest.NewClient(s.baseURL, 5*time.Second, s.TokenFor(userID), s.Log)
	s.Require().NoError(err, "Failed to build REST client")
	return client
}

func (s *BaseSuite) Banner(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if s.Config.Colours {
		color.Cyan.Println(msg)
		return
	}
	s.T().Log(msg)
}
