package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/shopspring/decimal"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/types"
)

var (
	ErrModelNotFound    = errors.New("account not found")
	ErrModelExists      = errors.New("account already exists")
	ErrPositionNotFound = errors.New("position not found")
)

// Key layout:
//
//	model/{acct}                  types.Model
//	acct/{acct}                   summary (realized pnl, buy fees)
//	pos/{acct}/{symbol}/{side}    types.Position
//	trade/{acct}/{seq}            types.Trade
//	value/{acct}/{seq}            types.AccountValue
//	conv/{acct}/{seq}             types.Conversation
//	price/{symbol}/{date}         types.DailyPrice
//
// seq is a zero padded counter so keys sort in insertion order.
const seqKey = "seq/ledger"

type summary struct {
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	BuyFees     decimal.Decimal `json:"buy_fees"`
}

// Store is the badger-backed ledger.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
	gc  *gcRunner
	now func() time.Time
}

var _ interfaces.Ledger = (*Store)(nil)

func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	seq, err := db.GetSequence([]byte(seqKey), 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger sequence: %w", err)
	}
	s := &Store{db: db, seq: seq, now: time.Now}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = startGC(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	}
	return s, nil
}

func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	var errs []error
	if err := s.seq.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func modelKey(acct string) []byte { return []byte("model/" + acct) }
func summaryKey(acct string) []byte { return []byte("acct/" + acct) }
func positionPrefix(acct string) []byte { return []byte("pos/" + acct + "/") }
func positionKey(acct, symbol, side string) []byte {
	return []byte("pos/" + acct + "/" + symbol + "/" + side)
}
func pricePrefix(symbol string) []byte { return []byte("price/" + symbol + "/") }
func priceKey(symbol, date string) []byte { return []byte("price/" + symbol + "/" + date) }
func seqEntryKey(kind, acct string, n uint64) []byte {
	return []byte(fmt.Sprintf("%s/%s/%020d", kind, acct, n))
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, b)
}

// scan calls fn for each value under prefix in key order.
func scan(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// scanLast returns up to limit values under prefix, newest last. A
// non-positive limit returns everything.
func scanLast(txn *badger.Txn, prefix []byte, limit int) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = true
	it := txn.NewIterator(opts)
	defer it.Close()

	var out [][]byte
	seek := append(bytes.Clone(prefix), 0xFF)
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		v, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CreateModel registers a new account.
func (s *Store) CreateModel(ctx context.Context, m types.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(modelKey(m.ID)); err == nil {
			return fmt.Errorf("%w: %s", ErrModelExists, m.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, modelKey(m.ID), m)
	})
}

// EnsureModel returns the stored account, creating it from m when absent.
// An existing account keeps its original initial capital.
func (s *Store) EnsureModel(ctx context.Context, m types.Model) (*types.Model, error) {
	existing, err := s.GetModel(ctx, m.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrModelNotFound) {
		return nil, err
	}
	if err := s.CreateModel(ctx, m); err != nil && !errors.Is(err, ErrModelExists) {
		return nil, err
	}
	return s.GetModel(ctx, m.ID)
}

func (s *Store) GetModel(ctx context.Context, accountID string) (*types.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var m types.Model
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, modelKey(accountID), &m)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) positions(txn *badger.Txn, accountID string) ([]types.Position, error) {
	var out []types.Position
	err := scan(txn, positionPrefix(accountID), func(val []byte) error {
		var p types.Position
		if err := json.Unmarshal(val, &p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, err
}

func (s *Store) summary(txn *badger.Txn, accountID string) (summary, error) {
	var sum summary
	err := getJSON(txn, summaryKey(accountID), &sum)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return summary{}, nil
	}
	return sum, err
}

// GetPortfolio values the account at prices; positions without a price are
// valued at their average cost.
//
//	cash  = initial + realized pnl - buy fees - margin used
//	total = cash + margin used + unrealized pnl
func (s *Store) GetPortfolio(ctx context.Context, accountID string, prices map[string]decimal.Decimal) (*types.Portfolio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		model     types.Model
		sum       summary
		positions []types.Position
	)
	err := s.db.View(func(txn *badger.Txn) error {
		if err := getJSON(txn, modelKey(accountID), &model); err != nil {
			return err
		}
		var err error
		if sum, err = s.summary(txn, accountID); err != nil {
			return err
		}
		positions, err = s.positions(txn, accountID)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}

	p := &types.Portfolio{Positions: positions}
	for _, pos := range positions {
		qty := decimal.NewFromInt(pos.Quantity)
		lev := pos.Leverage
		if lev < 1 {
			lev = 1
		}
		p.MarginUsed = p.MarginUsed.Add(qty.Mul(pos.AvgPrice).Div(decimal.NewFromInt(int64(lev))))

		current, ok := prices[pos.Symbol]
		if !ok || !current.IsPositive() {
			current = pos.AvgPrice
		}
		p.PositionsValue = p.PositionsValue.Add(qty.Mul(current))
		p.UnrealizedPnL = p.UnrealizedPnL.Add(current.Sub(pos.AvgPrice).Mul(qty))
	}
	p.Cash = model.InitialCapital.Add(sum.RealizedPnL).Sub(sum.BuyFees).Sub(p.MarginUsed)
	p.TotalValue = p.Cash.Add(p.MarginUsed).Add(p.UnrealizedPnL)
	if p.Positions == nil {
		p.Positions = []types.Position{}
	}
	return p, nil
}

// UpdatePosition opens a position or adds to it at a weighted average
// price. An existing position keeps its leverage.
func (s *Store) UpdatePosition(ctx context.Context, accountID, symbol string, qty int64, price decimal.Decimal, leverage int, side string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if qty <= 0 {
		return fmt.Errorf("update position %s: quantity must be positive, got %d", symbol, qty)
	}
	n, err := s.seq.Next()
	if err != nil {
		return err
	}
	key := positionKey(accountID, symbol, side)

	return s.db.Update(func(txn *badger.Txn) error {
		var pos types.Position
		err := getJSON(txn, key, &pos)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if leverage < 1 {
				leverage = 1
			}
			pos = types.Position{
				Symbol:   symbol,
				Side:     side,
				Quantity: qty,
				AvgPrice: price,
				Leverage: leverage,
				Seq:      n,
				OpenedAt: s.now(),
			}
		case err != nil:
			return err
		default:
			total := pos.AvgPrice.Mul(decimal.NewFromInt(pos.Quantity)).Add(price.Mul(decimal.NewFromInt(qty)))
			pos.Quantity += qty
			pos.AvgPrice = total.Div(decimal.NewFromInt(pos.Quantity))
		}
		return setJSON(txn, key, pos)
	})
}

func (s *Store) ClosePosition(ctx context.Context, accountID, symbol, side string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := positionKey(accountID, symbol, side)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s %s", ErrPositionNotFound, symbol, side)
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// AddTrade appends a trade and folds its pnl and buy fee into the account
// summary in the same transaction.
func (s *Store) AddTrade(ctx context.Context, t types.Trade) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := s.seq.Next()
	if err != nil {
		return err
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = s.now()
	}
	return s.db.Update(func(txn *badger.Txn) error {
		sum, err := s.summary(txn, t.AccountID)
		if err != nil {
			return err
		}
		sum.RealizedPnL = sum.RealizedPnL.Add(t.PnL)
		if t.Signal == types.SignalBuyToEnter {
			sum.BuyFees = sum.BuyFees.Add(t.Fee)
		}
		if err := setJSON(txn, summaryKey(t.AccountID), sum); err != nil {
			return err
		}
		return setJSON(txn, seqEntryKey("trade", t.AccountID, n), t)
	})
}

func (s *Store) RecordAccountValue(ctx context.Context, v types.AccountValue) error {
	return s.appendEntry(ctx, "value", v.AccountID, v)
}

func (s *Store) AddConversation(ctx context.Context, c types.Conversation) error {
	return s.appendEntry(ctx, "conv", c.AccountID, c)
}

func (s *Store) appendEntry(ctx context.Context, kind, accountID string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := s.seq.Next()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, seqEntryKey(kind, accountID, n), v)
	})
}

func listLast[T any](s *Store, ctx context.Context, kind, accountID string, limit int) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var raw [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		raw, err = scanLast(txn, []byte(kind+"/"+accountID+"/"), limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, b := range raw {
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("decode %s entry: %w", kind, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ListTrades returns the newest limit trades, oldest first.
func (s *Store) ListTrades(ctx context.Context, accountID string, limit int) ([]types.Trade, error) {
	return listLast[types.Trade](s, ctx, "trade", accountID, limit)
}

func (s *Store) ListAccountValues(ctx context.Context, accountID string, limit int) ([]types.AccountValue, error) {
	return listLast[types.AccountValue](s, ctx, "value", accountID, limit)
}

func (s *Store) ListConversations(ctx context.Context, accountID string, limit int) ([]types.Conversation, error) {
	return listLast[types.Conversation](s, ctx, "conv", accountID, limit)
}

// UpsertDailyPrice stores the closing price of symbol for date (YYYY-MM-DD).
func (s *Store) UpsertDailyPrice(ctx context.Context, symbol string, price decimal.Decimal, date string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, priceKey(symbol, date), types.DailyPrice{Symbol: symbol, Price: price, Date: date})
	})
}

// GetLatestDailyPrices returns the most recent stored close per symbol.
// Symbols without a stored close are absent from the result.
func (s *Store) GetLatestDailyPrices(ctx context.Context, symbols []string) (map[string]types.DailyPrice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]types.DailyPrice, len(symbols))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, sym := range symbols {
			last, err := scanLast(txn, pricePrefix(sym), 1)
			if err != nil {
				return err
			}
			if len(last) == 0 {
				continue
			}
			var dp types.DailyPrice
			if err := json.Unmarshal(last[0], &dp); err != nil {
				return err
			}
			out[sym] = dp
		}
		return nil
	})
	return out, err
}
