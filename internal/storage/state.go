package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"calmledger/internal/core"
	"calmledger/internal/ledger"
	"calmledger/internal/log"
)

// DefaultKey is the slot the ledger lives under.
const DefaultKey = "calm-expenses:mobile-first"

// SeedAccountName names the account created on first run.
const SeedAccountName = "Cash"

// LoadReport describes the fallbacks Load had to take. A zero report means
// the stored document was read as-is.
type LoadReport struct {
	Missing       bool     // nothing stored yet, or an empty value
	ReadErr       error    // the slot itself failed
	Corrupt       error    // the value is not a JSON object
	InvalidFields []string // collections that were not arrays
	Skipped       map[string]int
	Orphans       int  // transactions and templates whose account was gone
	Seeded        bool // Bootstrap added the default account
}

// Fallback reports whether any part of the stored state was discarded.
func (r LoadReport) Fallback() bool {
	return r.ReadErr != nil || r.Corrupt != nil || len(r.InvalidFields) > 0 ||
		len(r.Skipped) > 0 || r.Orphans > 0
}

// StateStore serialises the ledger state into one slot.
type StateStore struct {
	slot   Slot
	key    string
	logger *log.Logger
}

func NewStateStore(slot Slot, key string, logger *log.Logger) *StateStore {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &StateStore{slot: slot, key: key, logger: logger.WithComponent(log.ComponentStorage)}
}

// Key returns the slot key in use.
func (s *StateStore) Key() string { return s.key }

// Save overwrites the slot with the full state.
func (s *StateStore) Save(ctx context.Context, st ledger.State) error {
	data, err := json.Marshal(st.Clone())
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.slot.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Load reads the state back. It never fails: an unreadable document
// yields empty collections, a field that is not an array yields an empty
// collection, and a malformed record is skipped on its own. Records left
// pointing at a missing account are then dropped. Every fallback is logged.
func (s *StateStore) Load(ctx context.Context) (ledger.State, LoadReport) {
	var report LoadReport
	empty := emptyState()

	data, ok, err := s.slot.Get(ctx, s.key)
	switch {
	case err != nil:
		report.ReadErr = err
		s.logger.WarnContext(ctx, "State slot unreadable, starting empty",
			log.FieldStorageKey, s.key, log.FieldError, err.Error())
		return empty, report
	case !ok || len(bytes.TrimSpace(data)) == 0:
		report.Missing = true
		return empty, report
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		if err == nil {
			err = fmt.Errorf("state is not an object")
		}
		report.Corrupt = err
		s.logger.WarnContext(ctx, "Stored state is corrupt, starting empty",
			log.FieldStorageKey, s.key, log.FieldError, err.Error())
		return empty, report
	}

	st := empty
	decodeRecords(raw, "accounts", &st.Accounts, &report, func(a core.Account) bool {
		return a.ID != ""
	})
	decodeRecords(raw, "tags", &st.Tags, &report, func(t core.Tag) bool {
		return t.ID != ""
	})
	decodeRecords(raw, "transactions", &st.Transactions, &report, func(tx core.Transaction) bool {
		return tx.ID != "" && tx.Kind.Valid()
	})
	decodeRecords(raw, "recurrings", &st.Recurrings, &report, func(r core.RecurringTemplate) bool {
		return r.ID != "" && r.Kind.Valid()
	})
	report.Orphans = dropDanglingRefs(&st)

	if len(report.InvalidFields) > 0 {
		s.logger.WarnContext(ctx, "Discarded malformed collections",
			log.FieldStorageKey, s.key,
			log.FieldInvalidFields, strings.Join(report.InvalidFields, ","))
	}
	for name, n := range report.Skipped {
		s.logger.WarnContext(ctx, "Skipped malformed records",
			log.FieldStorageKey, s.key, log.FieldEntity, name, "count", n)
	}
	if report.Orphans > 0 {
		s.logger.WarnContext(ctx, "Dropped records referencing missing accounts",
			log.FieldStorageKey, s.key, "count", report.Orphans)
	}
	return st, report
}

// dropDanglingRefs removes transactions and templates whose account is
// unknown and strips unknown tag ids. It returns how many records went.
func dropDanglingRefs(st *ledger.State) int {
	accounts := make(map[string]struct{}, len(st.Accounts))
	for _, a := range st.Accounts {
		accounts[a.ID] = struct{}{}
	}
	tags := make(map[string]struct{}, len(st.Tags))
	for _, t := range st.Tags {
		tags[t.ID] = struct{}{}
	}
	knownTags := func(ids []string) []string {
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if _, ok := tags[id]; ok {
				out = append(out, id)
			}
		}
		return out
	}

	dropped := 0
	txs := st.Transactions[:0]
	for _, tx := range st.Transactions {
		if _, ok := accounts[tx.AccountID]; !ok {
			dropped++
			continue
		}
		tx.TagIDs = knownTags(tx.TagIDs)
		txs = append(txs, tx)
	}
	st.Transactions = txs

	recs := st.Recurrings[:0]
	for _, r := range st.Recurrings {
		if _, ok := accounts[r.AccountID]; !ok {
			dropped++
			continue
		}
		r.TagIDs = knownTags(r.TagIDs)
		recs = append(recs, r)
	}
	st.Recurrings = recs
	return dropped
}

// Bootstrap loads the state and, when there are no accounts, seeds the
// default account and saves straight away. A failed save is logged only.
func (s *StateStore) Bootstrap(ctx context.Context, newID func() string) (ledger.State, LoadReport) {
	st, report := s.Load(ctx)
	if len(st.Accounts) > 0 {
		return st, report
	}
	if newID == nil {
		newID = core.NewID
	}
	st.Accounts = append(st.Accounts, core.Account{ID: newID(), Name: SeedAccountName})
	report.Seeded = true

	if err := s.Save(ctx, st); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist seeded state",
			log.FieldOperation, log.OpSeed, log.FieldError, err.Error())
	} else {
		s.logger.InfoContext(ctx, "Seeded default account",
			log.FieldOperation, log.OpSeed, log.FieldStorageKey, s.key)
	}
	return st, report
}

func emptyState() ledger.State {
	return ledger.State{
		Accounts:     []core.Account{},
		Tags:         []core.Tag{},
		Transactions: []core.Transaction{},
		Recurrings:   []core.RecurringTemplate{},
	}
}

// decodeRecords fills dst from raw[name]. A field that is not an array is
// noted in InvalidFields and leaves dst empty; an element that does not
// decode or fails keep is skipped and counted. An absent field is empty.
func decodeRecords[T any](raw map[string]json.RawMessage, name string, dst *[]T, report *LoadReport, keep func(T) bool) {
	msg, ok := raw[name]
	if !ok {
		return
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(msg, &elems); err != nil || elems == nil {
		report.InvalidFields = append(report.InvalidFields, name)
		return
	}
	items := make([]T, 0, len(elems))
	for _, elem := range elems {
		var v T
		if err := json.Unmarshal(elem, &v); err != nil || !keep(v) {
			if report.Skipped == nil {
				report.Skipped = make(map[string]int)
			}
			report.Skipped[name]++
			continue
		}
		items = append(items, v)
	}
	*dst = items
}
