/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

// Command ironhalld is the server entrypoint: it loads configuration,
// wires the Matrix, persistence, security plane, services, and dispatch
// tables together, then accepts connections until signaled to shut down.
//
// Grounded on the teacher's cmd/dircd/main.go: conc.WaitGroup-supervised
// goroutines, a cancelable root context, and the same SIGINT/SIGTERM
// double-signal shutdown shape (first signal requests graceful shutdown,
// second forces exit).
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sirupsen/logrus"

	"github.com/btnmasher/ironhall/internal/bouncer"
	"github.com/btnmasher/ironhall/internal/config"
	"github.com/btnmasher/ironhall/internal/connection"
	"github.com/btnmasher/ironhall/internal/dispatch"
	"github.com/btnmasher/ironhall/internal/handlers"
	"github.com/btnmasher/ironhall/internal/matrix"
	"github.com/btnmasher/ironhall/internal/security/bancache"
	"github.com/btnmasher/ironhall/internal/security/cloak"
	"github.com/btnmasher/ironhall/internal/security/ipdeny"
	"github.com/btnmasher/ironhall/internal/security/ratelimit"
	"github.com/btnmasher/ironhall/internal/security/spam"
	"github.com/btnmasher/ironhall/internal/services"
	"github.com/btnmasher/ironhall/internal/store/clientkv"
	"github.com/btnmasher/ironhall/internal/store/sqlstore"
	"github.com/btnmasher/ironhall/internal/transport"
	"github.com/btnmasher/ironhall/shared/logfmt"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "ironhall.yaml", "path to the server's YAML configuration file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(logfmt.New())

	mainCtx, shutdown := context.WithCancel(context.Background())
	defer shutdown()

	wg := conc.NewWaitGroup()
	defer wg.Wait()

	cfgMgr, err := config.NewManager(*configPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	snap := cfgMgr.Snapshot()

	wg.Go(func() {
		if err := cfgMgr.Watch(mainCtx); err != nil && mainCtx.Err() == nil {
			logger.WithError(err).Warn("configuration watcher stopped")
		}
	})

	db, err := sqlstore.Open(snap.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("failed to open persistence store")
	}
	defer db.Close()

	kv, err := clientkv.Open(snap.ClientKVPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to open client snapshot store")
	}
	defer kv.Close()

	mx := matrix.New(512, &matrix.Config{
		NetworkName:    snap.NetworkName,
		ServerName:     snap.ServerName,
		ServerPassword: snap.ServerPassword,
		MOTD:           snap.MOTD,
		MaxNickLen:     snap.MaxNickLength,
		MaxChanLen:     snap.MaxChanLength,
		MaxTopicLen:    snap.MaxTopicLength,
	})

	clients := bouncer.New(mx, kv, db, bouncer.Config{
		AllowMulticlient: snap.AllowMulticlient,
		MaxSessions:      snap.MaxBouncerSessions,
	})
	if err := clients.LoadAll(); err != nil {
		logger.WithError(err).Fatal("failed to rehydrate always-on clients")
	}

	var cloaker *cloak.Cloaker
	if snap.CloakSecret != "" {
		cloaker, err = cloak.New(snap.CloakSecret, snap.CloakIPSuffix, snap.CloakHiddenSuffix)
		if err != nil {
			logger.WithError(err).Fatal("invalid cloak secret")
		}
	}

	limiters := ratelimit.NewSet(
		snap.RateLimits.ConnPerMinute,
		snap.RateLimits.MsgPerSecond, snap.RateLimits.MsgBurst,
		snap.RateLimits.JoinPerSecond, snap.RateLimits.JoinBurst,
	)

	ipDeny := ipdeny.New()
	banCache := bancache.New()
	if err := syncBanCaches(db, ipDeny, banCache); err != nil {
		logger.WithError(err).Warn("failed to load persisted bans into memory")
	}

	spamCfg := spam.DefaultConfig()
	tuning := cfgMgr.Hot().Spam()
	spamCfg.EntropyThreshold = tuning.EntropyThreshold
	spamCfg.MaxCharRun = tuning.MaxCharRun
	spamCfg.CTCPMarkerLimit = tuning.CTCPMarkerLimit
	spamCfg.RepeatWindow = tuning.RepeatWindow
	spamCfg.RepeatOccurrences = tuning.RepeatOccurrences
	spamDetector := spam.New(spamCfg)

	router := dispatch.New(logger.WithField("component", "dispatch"))
	handlers.Register(router)
	router.SetDeps(dispatch.Deps{
		Limiters: limiters,
		Spam:     spamDetector,
		Cloaker:  cloaker,
		History:  db,
		WebircGateways: snap.WebircGateways,
		IPDeny:   ipDeny,
		BanCache: banCache,
		Services: &dispatch.ServiceDeps{
			NickServ: services.NewNickServ(db),
			ChanServ: services.NewChanServ(db, db),
			Applier:  services.NewApplier(mx),
			Accounts: db,
		},
	})

	var tlsCfg *tls.Config
	if snap.TLSCertFile != "" && snap.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(snap.TLSCertFile, snap.TLSKeyFile)
		if err != nil {
			logger.WithError(err).Fatal("failed to load TLS certificate")
		}
		tlsCfg = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	listeners := make([]transport.Listener, 0, len(snap.ListenAddrs)+len(snap.WebSocketAddrs))
	for _, addr := range snap.ListenAddrs {
		ln, err := transport.ListenTCP(addr)
		if err != nil {
			logger.WithError(err).WithField("addr", addr).Fatal("failed to bind listener")
		}
		listeners = append(listeners, ln)
	}

	// TLS listens on the same set of configured addresses again when a
	// certificate is present, the way the teacher's server.go offers both
	// a plaintext and a TLS listener off one address list rather than a
	// second disjoint one.
	if tlsCfg != nil {
		for _, addr := range snap.ListenAddrs {
			ln, err := transport.ListenTLS(addr, tlsCfg)
			if err != nil {
				logger.WithError(err).WithField("addr", addr).Fatal("failed to bind TLS listener")
			}
			listeners = append(listeners, ln)
		}
	}

	var wsServers []*http.Server
	for _, addr := range snap.WebSocketAddrs {
		addr := addr
		tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
		if err != nil {
			logger.WithError(err).WithField("addr", addr).Fatal("invalid websocket address")
		}
		wsLn, handler := transport.NewWebSocketListener(tcpAddr)
		mux := http.NewServeMux()
		mux.Handle("/", handler)
		srv := &http.Server{Addr: addr, Handler: mux}
		if tlsCfg != nil {
			srv.TLSConfig = tlsCfg
		}
		wsServers = append(wsServers, srv)
		listeners = append(listeners, wsLn)

		wg.Go(func() {
			var err error
			if tlsCfg != nil {
				err = srv.ListenAndServeTLS("", "")
			} else {
				err = srv.ListenAndServe()
			}
			if err != nil && err != http.ErrServerClosed {
				logger.WithError(err).WithField("addr", addr).Warn("websocket http server stopped")
			}
		})
	}

	for _, ln := range listeners {
		ln := ln
		wg.Go(func() { acceptLoop(mainCtx, ln, mx, router, logger, wg, limiters, ipDeny) })
	}

	wg.Go(func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-mainCtx.Done():
				_ = clients.FlushDirty()
				return
			case <-ticker.C:
				if err := clients.FlushDirty(); err != nil {
					logger.WithError(err).Warn("failed to flush always-on client state")
				}
			}
		}
	})

	log := logger.WithField("component", "main")
	killSignals := make(chan os.Signal, 1)
	signal.Notify(killSignals, syscall.SIGINT, syscall.SIGTERM)

	sig := <-killSignals
	log.Infof("initializing server shutdown, received signal: %s", sig)
	shutdown()
	for _, ln := range listeners {
		_ = ln.Close()
	}
	for _, srv := range wsServers {
		_ = srv.Close()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		log.Warn("shutdown timeout exceeded, exiting")
	case sig := <-killSignals:
		log.Fatalf("forcefully shutting down server, received signal: %s", sig)
	}
}

func acceptLoop(ctx context.Context, ln transport.Listener, mx *matrix.Matrix, router *dispatch.Router, logger *logrus.Logger, wg *conc.WaitGroup, limiters *ratelimit.Set, ipDeny *ipdeny.List) {
	for {
		sock, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Warn("accept failed")
			continue
		}

		host, _, splitErr := net.SplitHostPort(sock.RemoteAddr().String())
		if splitErr == nil {
			if addr, parseErr := netip.ParseAddr(host); parseErr == nil {
				if denied, reason := ipDeny.Denied(addr); denied {
					logger.WithField("addr", host).WithField("reason", reason).Info("rejected connection from denied address")
					_ = sock.Close()
					continue
				}
				if !limiters.Connections.Allow(host) {
					logger.WithField("addr", host).Info("rejected connection, connection rate limit exceeded")
					_ = sock.Close()
					continue
				}
			}
		}

		conn := connection.New(sock, mx, logger, router.Route, limiters)
		wg.Go(conn.Serve)
	}
}

// syncBanCaches loads the durable D/Z-line ranges into the IP deny list
// and the K/G-line masks into the in-memory ban cache, so both checks at
// accept/registration time avoid a database round trip on the hot path.
func syncBanCaches(db *sqlstore.Store, ipDeny *ipdeny.List, banCache *bancache.Cache) error {
	zrecs, err := db.ListBans(sqlstore.ZLine)
	if err != nil {
		return err
	}
	for _, r := range zrecs {
		if addr, err := netip.ParseAddr(r.Mask); err == nil {
			ipDeny.DenyExact(addr)
		} else if prefix, err := netip.ParsePrefix(r.Mask); err == nil {
			ipDeny.DenyRange(prefix, r.Reason, r.SetBy)
		}
	}

	drecs, err := db.ListBans(sqlstore.DLine)
	if err != nil {
		return err
	}
	for _, r := range drecs {
		if addr, err := netip.ParseAddr(r.Mask); err == nil {
			ipDeny.DenyExact(addr)
		} else if prefix, err := netip.ParsePrefix(r.Mask); err == nil {
			ipDeny.DenyRange(prefix, r.Reason, r.SetBy)
		}
	}

	krecs, err := db.ListBans(sqlstore.KLine)
	if err != nil {
		return err
	}
	for _, r := range krecs {
		banCache.Add(bancache.KLine, bancache.Entry{Mask: r.Mask, Reason: r.Reason, SetBy: r.SetBy, SetAt: r.SetAt, ExpiresAt: r.ExpiresAt})
	}

	grecs, err := db.ListBans(sqlstore.GLine)
	if err != nil {
		return err
	}
	for _, r := range grecs {
		banCache.Add(bancache.GLine, bancache.Entry{Mask: r.Mask, Reason: r.Reason, SetBy: r.SetBy, SetAt: r.SetAt, ExpiresAt: r.ExpiresAt})
	}

	return nil
}
