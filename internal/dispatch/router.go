// Package dispatch implements the typestate command dispatcher (spec.md
// §4.5): separate handler tables for pre-registration and
// post-registration commands, so a RegisteredState-only handler can never
// be reached before the handshake completes.
//
// Grounded on the teacher's router.go (gin-style Router/RouterGroup/
// MessageContext middleware chain, HandlerMap keyed by command string,
// RouteCommand's dispatch loop) generalized to hold two HandlerMaps -- one
// per connection.State -- instead of one flat map, resolving spec's
// Open Question of "legacy flat dispatch vs. the newer router.go" in
// favor of keeping the router.go shape and splitting it by typestate.
package dispatch

import (
	"fmt"
	"path"
	"reflect"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/btnmasher/ironhall/internal/config"
	"github.com/btnmasher/ironhall/internal/connection"
	"github.com/btnmasher/ironhall/internal/ircmsg"
	"github.com/btnmasher/ironhall/internal/matrix"
	"github.com/btnmasher/ironhall/internal/security/bancache"
	"github.com/btnmasher/ironhall/internal/security/cloak"
	"github.com/btnmasher/ironhall/internal/security/ipdeny"
	"github.com/btnmasher/ironhall/internal/security/ratelimit"
	"github.com/btnmasher/ironhall/internal/security/spam"
	"github.com/btnmasher/ironhall/internal/services"
	"github.com/btnmasher/ironhall/internal/store/sqlstore"
)

// ServiceDeps groups the service-command effect producers and their
// applier, so handlers can route PRIVMSG targets like NickServ/ChanServ
// without importing internal/services themselves.
type ServiceDeps struct {
	NickServ *services.NickServ
	ChanServ *services.ChanServ
	Applier  *services.Applier
	Accounts services.AccountStore
}

// Deps bundles the cross-cutting collaborators every command handler may
// need: rate limiting, spam detection, and service commands. Any field
// may be nil, in which case the corresponding check is skipped -- this
// keeps Router usable in tests that only care about command routing.
type Deps struct {
	Limiters *ratelimit.Set
	Spam     *spam.Detector
	Services *ServiceDeps
	Cloaker  *cloak.Cloaker
	History  *sqlstore.Store
	WebircGateways []config.WebircGateway
	IPDeny   *ipdeny.List
	BanCache *bancache.Cache
}

// Context is the per-command handler argument, the generalized
// MessageContext: it carries the Matrix, the connection, and the parsed
// message, plus the same abort/handled signaling the teacher's version
// used to short-circuit a middleware chain.
type Context struct {
	Matrix *matrix.Matrix
	Conn   *connection.Conn
	Msg    *ircmsg.Message
	Deps   Deps

	handler string
	handled bool
	abort   bool
	err     error
}

// Handled stops the chain without treating it as an error.
func (c *Context) Handled() { c.handled = true }

// AbortWithError stops the chain and records an error for logging.
func (c *Context) AbortWithError(err error) {
	c.abort = true
	c.err = err
}

// Handler processes one IRC command within a Context.
type Handler func(*Context)

// HandlersChain is an ordered middleware+handler chain for one command.
type HandlersChain []Handler

// Router holds two independent handler tables, selected by the
// connection's typestate at dispatch time.
type Router struct {
	logger *logrus.Entry
	deps   Deps

	unregistered map[string]HandlersChain
	registered   map[string]HandlersChain

	globalUnregistered HandlersChain
	globalRegistered   HandlersChain
}

// SetDeps installs the cross-cutting collaborators every routed Context
// will carry from this point on. Called once during server startup,
// after the dependencies it bundles have been constructed.
func (r *Router) SetDeps(d Deps) { r.deps = d }

// New constructs an empty Router.
func New(logger *logrus.Entry) *Router {
	if logger == nil {
		panic("dispatch: must provide a logger to New")
	}
	return &Router{
		logger:       logger.WithField("component", "dispatch"),
		unregistered: make(map[string]HandlersChain),
		registered:   make(map[string]HandlersChain),
	}
}

// UseUnregistered attaches global middleware run ahead of every
// pre-registration command.
func (r *Router) UseUnregistered(mw ...Handler) {
	r.globalUnregistered = append(r.globalUnregistered, mw...)
}

// UseRegistered attaches global middleware run ahead of every
// post-registration command.
func (r *Router) UseRegistered(mw ...Handler) {
	r.globalRegistered = append(r.globalRegistered, mw...)
}

// HandleUnregistered registers a command only reachable before
// registration completes (PASS, NICK, USER, CAP, AUTHENTICATE, WEBIRC).
func (r *Router) HandleUnregistered(command string, handlers ...Handler) {
	r.addHandler(r.unregistered, command, append(append(HandlersChain{}, r.globalUnregistered...), handlers...))
}

// HandleRegistered registers a command only reachable once registration
// has completed (everything else: JOIN, PRIVMSG, MODE, ...).
func (r *Router) HandleRegistered(command string, handlers ...Handler) {
	r.addHandler(r.registered, command, append(append(HandlersChain{}, r.globalRegistered...), handlers...))
}

// HandleBoth registers a command valid in either typestate (PING, PONG,
// QUIT, CAP are legal at any point in IRCv3).
func (r *Router) HandleBoth(command string, handlers ...Handler) {
	r.HandleUnregistered(command, handlers...)
	r.HandleRegistered(command, handlers...)
}

func (r *Router) addHandler(table map[string]HandlersChain, command string, handlers HandlersChain) {
	if command == "" {
		panic("dispatch: command must not be empty")
	}
	if len(handlers) == 0 {
		panic("dispatch: at least one handler required")
	}
	table[command] = handlers
}

// Route is installed as the connection.Router callback. It selects the
// handler table by the connection's current typestate and runs the chain,
// the generalized form of the teacher's RouteCommand.
func (r *Router) Route(c *connection.Conn, msg *ircmsg.Message) {
	table := r.unregistered
	if c.GetState() == connection.StateRegistered {
		table = r.registered
	}

	log := r.logger.WithField("command", msg.Command)
	handlers, ok := table[msg.Command]
	if !ok {
		c.Deliver(&ircmsg.Message{
			Code:   ircmsg.ErrUnknownCommand,
			Params: []string{msg.Command},
			Trailing: "Unknown command",
			HasTrailing: true,
		})
		log.Debug("dispatch: no handler registered for command in this state")
		return
	}

	ctx := &Context{Matrix: c.Matrix, Conn: c, Msg: msg, Deps: r.deps}

	for i := range handlers {
		ctx.handler = nameOfHandler(handlers[i])
		handlers[i](ctx)
		if ctx.handled {
			return
		}
		if ctx.err != nil {
			log.Warn(fmt.Errorf("handler %s reported error: %w", ctx.handler, ctx.err))
		}
		if ctx.abort {
			log.Debugf("dispatch: chain aborted at %s", ctx.handler)
			return
		}
	}
}

func nameOfHandler(h Handler) string {
	return path.Base(runtime.FuncForPC(reflect.ValueOf(h).Pointer()).Name())
}
