package tls

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/caddyserver/certmagic"
)

// CertManager serves the dashboard over HTTPS with ACME certificates managed
// by certmagic for a fixed set of domains.
type CertManager struct {
	domains []string
	logger  *slog.Logger
	cfg     *certmagic.Config
}

// NewCertManager configures certmagic. Outside production the Let's Encrypt
// staging CA is used.
func NewCertManager(domains []string, email string, production bool, logger *slog.Logger) *CertManager {
	certmagic.DefaultACME.Email = email
	certmagic.DefaultACME.Agreed = true

	if !production {
		certmagic.DefaultACME.CA = certmagic.LetsEncryptStagingCA
	}

	return &CertManager{domains: domains, logger: logger, cfg: certmagic.NewDefault()}
}

// Serve obtains certificates for the configured domains, then serves srv over
// TLS on the HTTPS port. It returns http.ErrServerClosed after srv.Shutdown.
func (cm *CertManager) Serve(ctx context.Context, srv *http.Server) error {
	if len(cm.domains) == 0 {
		return errors.New("no TLS domains configured")
	}
	cm.logger.Info("starting TLS server", "domains", cm.domains)

	if err := cm.cfg.ManageSync(ctx, cm.domains); err != nil {
		return fmt.Errorf("manage domains: %w", err)
	}

	tlsCfg := cm.cfg.TLSConfig()
	tlsCfg.NextProtos = append([]string{"h2", "http/1.1"}, tlsCfg.NextProtos...)
	ln, err := tls.Listen("tcp", fmt.Sprintf(":%d", certmagic.HTTPSPort), tlsCfg)
	if err != nil {
		return fmt.Errorf("tls listen: %w", err)
	}

	cm.logger.Info("serving HTTPS", "port", certmagic.HTTPSPort)
	return srv.Serve(ln)
}

// Domains returns the managed domain names.
func (cm *CertManager) Domains() []string {
	return cm.domains
}
