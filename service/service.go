package service

import (
	"context"
	"fmt"

	"cosmossdk.io/log"

	"github.com/openalpha/etf-service/api"
	"github.com/openalpha/etf-service/api/websocket"
	"github.com/openalpha/etf-service/book"
	"github.com/openalpha/etf-service/clearing"
	"github.com/openalpha/etf-service/etf"
	"github.com/openalpha/etf-service/feed"
)

// Service assembles the whole pipeline: two multicast receivers feeding
// the book and the position store, the conversion ledger on top of the
// store, the dashboard broadcaster, and the two serving surfaces.
type Service struct {
	config *Config
	logger log.Logger

	store  *clearing.Store
	book   *book.Book
	ledger *etf.Ledger

	mdReceiver       *feed.Receiver
	clearingReceiver *feed.Receiver

	apiServer   *api.Server
	wsServer    *websocket.Server
	broadcaster *websocket.Broadcaster

	cancel context.CancelFunc
}

// bookEvents routes decoded order events into the book.
type bookEvents struct {
	book *book.Book
}

func (h bookEvents) HandleNewOrder(m feed.NewOrder) {
	h.book.ApplyNew(m.OrderID, m.Symbol, m.Side, m.Quantity, m.Price)
}

func (h bookEvents) HandleDeleteOrder(m feed.DeleteOrder) {
	h.book.ApplyDelete(m.OrderID)
}

func (h bookEvents) HandleModifyOrder(m feed.ModifyOrder) {
	h.book.ApplyModify(m.OrderID, m.Side, m.Quantity, m.Price)
}

// storeEvents routes decoded fills into the position store.
type storeEvents struct {
	store *clearing.Store
}

func (h storeEvents) HandleFill(m feed.Fill) {
	h.store.ApplyFill(m.ClientID, m.Symbol, m.Quantity, m.Price, m.Side)
}

// New builds a service from config. Nothing starts listening until Start.
func New(config *Config, logger log.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store := clearing.NewStore()

	bk, err := book.New(config.Engine, logger)
	if err != nil {
		return nil, err
	}

	ledger := etf.NewLedger(store, logger)

	mdDecoder := feed.NewMDDecoder(bookEvents{book: bk}, logger)
	clearingDecoder := feed.NewClearingDecoder(storeEvents{store: store}, logger)

	wsServer := websocket.NewServer(&websocket.ServerConfig{
		Host: config.WSHost,
		Port: config.WSPort,
	}, logger)

	broadcaster := websocket.NewBroadcaster(
		wsServer.Hub(), bk, store, ledger,
		config.SnapshotInterval(), config.FeeDec(), logger,
	)

	apiServer := api.NewServer(&api.Config{
		Host:             config.RESTHost,
		Port:             config.RESTPort,
		DisableRateLimit: config.DisableRateLimit,
	}, ledger, bk, logger)

	return &Service{
		config:           config,
		logger:           logger.With("module", "service"),
		store:            store,
		book:             bk,
		ledger:           ledger,
		mdReceiver:       feed.NewReceiver("md", config.MDGroup(), config.McastBindIP, mdDecoder, logger),
		clearingReceiver: feed.NewReceiver("clearing", config.ClearingGroup(), config.McastBindIP, clearingDecoder, logger),
		apiServer:        apiServer,
		wsServer:         wsServer,
		broadcaster:      broadcaster,
	}, nil
}

// Start joins the feeds and brings up both serving surfaces. The receivers
// must come up or Start fails; the servers run until Stop.
func (s *Service) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if err := s.mdReceiver.Start(ctx); err != nil {
		return fmt.Errorf("md receiver: %w", err)
	}
	if err := s.clearingReceiver.Start(ctx); err != nil {
		s.mdReceiver.Stop()
		return fmt.Errorf("clearing receiver: %w", err)
	}

	s.broadcaster.Start(ctx)

	go func() {
		if err := s.wsServer.Start(); err != nil {
			s.logger.Error("websocket server failed", "err", err)
		}
	}()
	go func() {
		if err := s.apiServer.Start(); err != nil {
			s.logger.Error("rest server failed", "err", err)
		}
	}()

	s.logger.Info("service started",
		"md_group", s.config.MDGroup(),
		"clearing_group", s.config.ClearingGroup(),
		"rest_port", s.config.RESTPort,
		"ws_port", s.config.WSPort,
		"engine", s.config.Engine,
	)
	return nil
}

// Stop tears everything down: feeds first so state stops changing, then
// the broadcaster, then both servers.
func (s *Service) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	if err := s.mdReceiver.Stop(); err != nil {
		s.logger.Error("md receiver stop failed", "err", err)
	}
	if err := s.clearingReceiver.Stop(); err != nil {
		s.logger.Error("clearing receiver stop failed", "err", err)
	}

	s.broadcaster.Stop()

	var firstErr error
	if err := s.apiServer.Stop(ctx); err != nil {
		firstErr = err
	}
	if err := s.wsServer.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	s.logger.Info("service stopped")
	return firstErr
}

// Store exposes the position store.
func (s *Service) Store() *clearing.Store {
	return s.store
}

// Book exposes the order book.
func (s *Service) Book() *book.Book {
	return s.book
}

// Ledger exposes the conversion ledger.
func (s *Service) Ledger() *etf.Ledger {
	return s.ledger
}
