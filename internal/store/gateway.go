// Package store is the ports-out boundary to the external projection
// store: a typed, key-addressable upsert/update API fronted by a
// PostgREST-style HTTP service, with unique-index triggers maintaining
// the two derived counters (Transaction.confirmationCount,
// Recovery.approvalCount). The store itself is out of scope; Gateway
// only has to speak its wire contract faithfully.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/multisig-chain/wallet-indexer/pkg/utils"
)

// Gateway exposes one method per projection operation named in the
// data model, grounded on the one-interface-one-operation shape other
// custody-domain repositories in this ecosystem use for their
// persistence ports.
type Gateway interface {
	UpsertWallet(ctx context.Context, w Wallet) error
	InsertOwners(ctx context.Context, owners []WalletOwner) error
	DeactivateOwner(ctx context.Context, wallet, owner string, removedAtBlock uint64) error
	IncrementOwnerCount(ctx context.Context, wallet string, delta int) error
	UpdateWalletThreshold(ctx context.Context, wallet, threshold string) error

	UpsertModule(ctx context.Context, m Module) error
	DeactivateModule(ctx context.Context, wallet, module string, disabledAtBlock uint64) error

	UpsertTransaction(ctx context.Context, tx Transaction) error
	UpdateTransactionStatus(ctx context.Context, wallet, txHash string, status TransactionStatus, atBlock uint64, atTx string) error
	InsertConfirmation(ctx context.Context, c Confirmation) error
	DeactivateConfirmation(ctx context.Context, wallet, txHash, owner string, revokedAtBlock uint64, revokedAtTx string) error

	InsertDeposit(ctx context.Context, d Deposit) error

	UpsertRecoveryConfig(ctx context.Context, c RecoveryConfig) error
	GetRecoveryConfig(ctx context.Context, wallet string) (*RecoveryConfig, error)
	DeactivateGuardians(ctx context.Context, wallet string) error
	InsertGuardians(ctx context.Context, guardians []RecoveryGuardian) error

	UpsertRecovery(ctx context.Context, r Recovery) error
	UpdateRecoveryStatus(ctx context.Context, wallet, recoveryHash string, status RecoveryStatus) error
	InsertRecoveryApproval(ctx context.Context, a RecoveryApproval) error
	DeactivateRecoveryApproval(ctx context.Context, wallet, recoveryHash, guardian string, revokedAtBlock uint64, revokedAtTx string) error

	GetDailyLimitState(ctx context.Context, wallet string) (*DailyLimitState, error)
	UpsertDailyLimitState(ctx context.Context, s DailyLimitState) error
	UpdateDailyLimitSpent(ctx context.Context, wallet, spentToday string) error
	ResetDailyLimit(ctx context.Context, wallet, today string) error

	InsertWhitelistEntry(ctx context.Context, e WhitelistEntry) error
	DeactivateWhitelistEntry(ctx context.Context, wallet, whitelisted string, removedAtBlock uint64) error

	InsertModuleTransaction(ctx context.Context, t ModuleTransaction) error

	// GetAllWalletAddresses paginates internally (page size 1000) since
	// the store's default query cap would otherwise truncate the result.
	GetAllWalletAddresses(ctx context.Context) ([]string, error)

	GetCheckpoint(ctx context.Context) (IndexerCheckpoint, error)
	SetCheckpoint(ctx context.Context, c IndexerCheckpoint) error

	Ping(ctx context.Context) error
}

// HTTPGateway is the one Gateway implementation: a thin client for a
// PostgREST-style REST facade. No ecosystem REST client is used —
// nothing in the example pack wraps one, so this stays on net/http
// deliberately rather than reaching for something unproven.
type HTTPGateway struct {
	baseURL    string
	serviceKey string
	schema     string
	httpClient *http.Client
	log        *logrus.Logger
}

const defaultPageSize = 1000

func NewHTTPGateway(baseURL, serviceKey, schema string, log *logrus.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		schema:     schema,
		httpClient: &http.Client{},
		log:        log,
	}
}

func (g *HTTPGateway) Ping(ctx context.Context) error {
	_, err := g.do(ctx, http.MethodGet, "indexer_checkpoint", url.Values{"limit": {"1"}}, nil, nil)
	return err
}

// do issues one request against the REST facade. prefer sets the
// Prefer header (e.g. "resolution=merge-duplicates,return=minimal" for
// an upsert); query carries filter/on_conflict parameters.
func (g *HTTPGateway) do(ctx context.Context, method, table string, query url.Values, body any, prefer []string) ([]byte, error) {
	u := g.baseURL + "/" + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, utils.Wrap(err, "store: marshal request")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, utils.Wrap(err, "store: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.serviceKey)
	req.Header.Set("Accept-Profile", g.schema)
	req.Header.Set("Content-Profile", g.schema)
	if len(prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(prefer, ","))
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, utils.Wrap(err, fmt.Sprintf("store: request to %s", table))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.Wrap(err, "store: read response")
	}

	if resp.StatusCode >= 300 {
		return respBody, &StoreError{Table: table, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// StoreError wraps a non-2xx REST response. Callers decide whether a
// particular code (typically 409, a unique-violation) is swallowed.
type StoreError struct {
	Table      string
	StatusCode int
	Body       string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s returned %d: %s", e.Table, e.StatusCode, e.Body)
}

// IsUniqueViolation reports whether err is a conflict response from the
// facade (PostgREST surfaces a unique-constraint violation as 409).
func IsUniqueViolation(err error) bool {
	var se *StoreError
	if ok := asStoreError(err, &se); ok {
		return se.StatusCode == http.StatusConflict
	}
	return false
}

func asStoreError(err error, target **StoreError) bool {
	for err != nil {
		if se, ok := err.(*StoreError); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// upsertIdempotent performs an upsert and swallows a unique-violation
// response — used for at-most-one-ledger-entry rows (owners,
// confirmations, approvals, whitelist entries, deposits).
func (g *HTTPGateway) upsertIdempotent(ctx context.Context, table string, conflictCols string, row any) error {
	q := url.Values{"on_conflict": {conflictCols}}
	_, err := g.do(ctx, http.MethodPost, table, q, row, []string{"resolution=merge-duplicates", "return=minimal"})
	if err != nil && IsUniqueViolation(err) {
		g.log.WithField("table", table).Debug("store: duplicate ledger entry, already applied")
		return nil
	}
	return err
}

func (g *HTTPGateway) upsert(ctx context.Context, table string, conflictCols string, row any) error {
	q := url.Values{"on_conflict": {conflictCols}}
	_, err := g.do(ctx, http.MethodPost, table, q, row, []string{"resolution=merge-duplicates", "return=minimal"})
	return err
}

func (g *HTTPGateway) patch(ctx context.Context, table string, filter url.Values, patch any) error {
	_, err := g.do(ctx, http.MethodPatch, table, filter, patch, []string{"return=minimal"})
	return err
}

func eqFilter(col, val string) url.Values {
	return url.Values{col: {"eq." + val}}
}

func (g *HTTPGateway) UpsertWallet(ctx context.Context, w Wallet) error {
	addr, err := NormalizeAddress("wallet", w.Address)
	if err != nil {
		return err
	}
	w.Address = addr
	return g.upsert(ctx, "wallets", "address", w)
}

func (g *HTTPGateway) InsertOwners(ctx context.Context, owners []WalletOwner) error {
	for i := range owners {
		addr, err := NormalizeAddress("wallet", owners[i].WalletAddress)
		if err != nil {
			return err
		}
		owner, err := NormalizeAddress("owner", owners[i].OwnerAddress)
		if err != nil {
			return err
		}
		owners[i].WalletAddress, owners[i].OwnerAddress = addr, owner
	}
	return g.upsertIdempotent(ctx, "wallet_owners", "walletAddress,ownerAddress,addedAtBlock", owners)
}

func (g *HTTPGateway) DeactivateOwner(ctx context.Context, wallet, owner string, removedAtBlock uint64) error {
	w, err := NormalizeAddress("wallet", wallet)
	if err != nil {
		return err
	}
	o, err := NormalizeAddress("owner", owner)
	if err != nil {
		return err
	}
	filter := eqFilter("walletAddress", w)
	filter.Set("ownerAddress", "eq."+o)
	filter.Set("isActive", "eq.true")
	return g.patch(ctx, "wallet_owners", filter, map[string]any{"isActive": false, "removedAt": removedAtBlock})
}

func (g *HTTPGateway) IncrementOwnerCount(ctx context.Context, wallet string, delta int) error {
	w, err := NormalizeAddress("wallet", wallet)
	if err != nil {
		return err
	}
	_, err = g.do(ctx, http.MethodPost, "rpc/increment_owner_count", nil,
		map[string]any{"p_wallet": w, "p_delta": delta}, []string{"return=minimal"})
	return err
}

func (g *HTTPGateway) UpdateWalletThreshold(ctx context.Context, wallet, threshold string) error {
	w, err := NormalizeAddress("wallet", wallet)
	if err != nil {
		return err
	}
	return g.patch(ctx, "wallets", eqFilter("address", w), map[string]any{"threshold": threshold})
}

func (g *HTTPGateway) UpsertModule(ctx context.Context, m Module) error {
	w, err := NormalizeAddress("wallet", m.WalletAddress)
	if err != nil {
		return err
	}
	mod, err := NormalizeAddress("module", m.ModuleAddress)
	if err != nil {
		return err
	}
	m.WalletAddress, m.ModuleAddress = w, mod
	return g.upsert(ctx, "modules", "walletAddress,moduleAddress", m)
}

func (g *HTTPGateway) DeactivateModule(ctx context.Context, wallet, module string, disabledAtBlock uint64) error {
	w, err := NormalizeAddress("wallet", wallet)
	if err != nil {
		return err
	}
	m, err := NormalizeAddress("module", module)
	if err != nil {
		return err
	}
	filter := eqFilter("walletAddress", w)
	filter.Set("moduleAddress", "eq."+m)
	return g.patch(ctx, "modules", filter, map[string]any{"isActive": false, "disabledAtBlock": disabledAtBlock})
}

func (g *HTTPGateway) UpsertTransaction(ctx context.Context, tx Transaction) error {
	w, err := NormalizeAddress("wallet", tx.WalletAddress)
	if err != nil {
		return err
	}
	h, err := NormalizeHash("txHash", tx.TxHash)
	if err != nil {
		return err
	}
	tx.WalletAddress, tx.TxHash = w, h
	return g.upsert(ctx, "transactions", "walletAddress,txHash", tx)
}

func (g *HTTPGateway) UpdateTransactionStatus(ctx context.Context, wallet, txHash string, status TransactionStatus, atBlock uint64, atTx string) error {
	w, err := NormalizeAddress("wallet", wallet)
	if err != nil {
		return err
	}
	h, err := NormalizeHash("txHash", txHash)
	if err != nil {
		return err
	}
	filter := eqFilter("walletAddress", w)
	filter.Set("txHash", "eq."+h)
	patchBody := map[string]any{"status": status}
	switch status {
	case TxStatusExecuted:
		patchBody["executedAtBlock"] = atBlock
		patchBody["executedAtTx"] = atTx
	case TxStatusCancelled:
		patchBody["cancelledAtBlock"] = atBlock
		patchBody["cancelledAtTx"] = atTx
	}
	return g.patch(ctx, "transactions", filter, patchBody)
}

func (g *HTTPGateway) InsertConfirmation(ctx context.Context, c Confirmation) error {
	w, err := NormalizeAddress("wallet", c.WalletAddress)
	if err != nil {
		return err
	}
	h, err := NormalizeHash("txHash", c.TxHash)
	if err != nil {
		return err
	}
	o, err := NormalizeAddress("owner", c.OwnerAddress)
	if err != nil {
		return err
	}
	c.WalletAddress, c.TxHash, c.OwnerAddress = w, h, o
	return g.upsertIdempotent(ctx, "confirmations", "walletAddress,txHash,ownerAddress,confirmedAtBlock", c)
}

func (g *HTTPGateway) DeactivateConfirmation(ctx context.Context, wallet, txHash, owner string, revokedAtBlock uint64, revokedAtTx string) error {
	w, err := NormalizeAddress("wallet", wallet)
	if err != nil {
		return err
	}
	h, err := NormalizeHash("txHash", txHash)
	if err != nil {
		return err
	}
	o, err := NormalizeAddress("owner", owner)
	if err != nil {
		return err
	}
	filter := eqFilter("walletAddress", w)
	filter.Set("txHash", "eq."+h)
	filter.Set("ownerAddress", "eq."+o)
	filter.Set("isActive", "eq.true")
	return g.patch(ctx, "confirmations", filter, map[string]any{
		"isActive": false, "revokedAtBlock": revokedAtBlock, "revokedAtTx": revokedAtTx,
	})
}

func (g *HTTPGateway) InsertDeposit(ctx context.Context, d Deposit) error {
	w, err := NormalizeAddress("wallet", d.WalletAddress)
	if err != nil {
		return err
	}
	s, err := NormalizeAddress("sender", d.SenderAddress)
	if err != nil {
		return err
	}
	d.WalletAddress, d.SenderAddress = w, s
	return g.upsertIdempotent(ctx, "deposits", "walletAddress,depositedAtTx", d)
}

func (g *HTTPGateway) UpsertRecoveryConfig(ctx context.Context, c RecoveryConfig) error {
	w, err := NormalizeAddress("wallet", c.WalletAddress)
	if err != nil {
		return err
	}
	c.WalletAddress = w
	return g.upsert(ctx, "recovery_configs", "walletAddress", c)
}

func (g *HTTPGateway) GetRecoveryConfig(ctx context.Context, wallet string) (*RecoveryConfig, error) {
	w, err := NormalizeAddress("wallet", wallet)
	if err != nil {
		return nil, err
	}
	body, err := g.do(ctx, http.MethodGet, "recovery_configs", eqFilter("walletAddress", w), nil, nil)
	if err != nil {
		return nil, err
	}
	var rows []RecoveryConfig
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, utils.Wrap(err, "store: decode recovery config")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (g *HTTPGateway) DeactivateGuardians(ctx context.Context, wallet string) error {
	w, err := NormalizeAddress("wallet", wallet)
	if err != nil {
		return err
	}
	filter := eqFilter("walletAddress", w)
	filter.Set("isActive", "eq.true")
	return g.patch(ctx, "recovery_guardians", filter, map[string]any{"isActive": false})
}

func (g *HTTPGateway) InsertGuardians(ctx context.Context, guardians []RecoveryGuardian) error {
	for i := range guardians {
		w, err := NormalizeAddress("wallet", guardians[i].WalletAddress)
		if err != nil {
			return err
		}
		guard, err := NormalizeAddress("guardian", guardians[i].GuardianAddress)
		if err != nil {
			return err
		}
		guardians[i].WalletAddress, guardians[i].GuardianAddress = w, guard
	}
	_, err := g.do(ctx, http.MethodPost, "recovery_guardians", nil, guardians, []string{"return=minimal"})
	return err
}

func (g *HTTPGateway) UpsertRecovery(ctx context.Context, r Recovery) error {
	w, err := NormalizeAddress("wallet", r.WalletAddress)
	if err != nil {
		return err
	}
	h, err := NormalizeHash("recoveryHash", r.RecoveryHash)
	if err != nil {
		return err
	}
	owners, err := normalizeAddresses("newOwners", r.NewOwners)
	if err != nil {
		return err
	}
	r.WalletAddress, r.RecoveryHash, r.NewOwners = w, h, owners
	return g.upsert(ctx, "recoveries", "walletAddress,recoveryHash", r)
}

func (g *HTTPGateway) UpdateRecoveryStatus(ctx context.Context, wallet, recoveryHash string, status RecoveryStatus) error {
	w, err := NormalizeAddress("wallet", wallet)
	if err != nil {
		return err
	}
	h, err := NormalizeHash("recoveryHash", recoveryHash)
	if err != nil {
		return err
	}
	filter := eqFilter("walletAddress", w)
	filter.Set("recoveryHash", "eq."+h)
	return g.patch(ctx, "recoveries", filter, map[string]any{"status": status})
}

func (g *HTTPGateway) InsertRecoveryApproval(ctx context.Context, a RecoveryApproval) error {
	w, err := NormalizeAddress("wallet", a.WalletAddress)
	if err != nil {
		return err
	}
	h, err := NormalizeHash("recoveryHash", a.RecoveryHash)
	if err != nil {
		return err
	}
	guard, err := NormalizeAddress("guardian", a.GuardianAddress)
	if err != nil {
		return err
	}
	a.WalletAddress, a.RecoveryHash, a.GuardianAddress = w, h, guard
	return g.upsertIdempotent(ctx, "recovery_approvals", "walletAddress,recoveryHash,guardianAddress,approvedAtBlock", a)
}

func (g *HTTPGateway) DeactivateRecoveryApproval(ctx context.Context, wallet, recoveryHash, guardian string, revokedAtBlock uint64, revokedAtTx string) error {
	w, err := NormalizeAddress("wallet", wallet)
	if err != nil {
		return err
	}
	h, err := NormalizeHash("recoveryHash", recoveryHash)
	if err != nil {
		return err
	}
	guard, err := NormalizeAddress("guardian", guardian)
	if err != nil {
		return err
	}
	filter := eqFilter("walletAddress", w)
	filter.Set("recoveryHash", "eq."+h)
	filter.Set("guardianAddress", "eq."+guard)
	filter.Set("isActive", "eq.true")
	return g.patch(ctx, "recovery_approvals", filter, map[string]any{
		"isActive": false, "revokedAtBlock": revokedAtBlock, "revokedAtTx": revokedAtTx,
	})
}

func (g *HTTPGateway) GetDailyLimitState(ctx context.Context, wallet string) (*DailyLimitState, error) {
	w, err := NormalizeAddress("wallet", wallet)
	if err != nil {
		return nil, err
	}
	body, err := g.do(ctx, http.MethodGet, "daily_limit_states", eqFilter("walletAddress", w), nil, nil)
	if err != nil {
		return nil, err
	}
	var rows []DailyLimitState
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, utils.Wrap(err, "store: decode daily limit state")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (g *HTTPGateway) UpsertDailyLimitState(ctx context.Context, s DailyLimitState) error {
	w, err := NormalizeAddress("wallet", s.WalletAddress)
	if err != nil {
		return err
	}
	s.WalletAddress = w
	return g.upsert(ctx, "daily_limit_states", "walletAddress", s)
}

func (g *HTTPGateway) UpdateDailyLimitSpent(ctx context.Context, wallet, spentToday string) error {
	w, err := NormalizeAddress("wallet", wallet)
	if err != nil {
		return err
	}
	return g.patch(ctx, "daily_limit_states", eqFilter("walletAddress", w), map[string]any{"spentToday": spentToday})
}

func (g *HTTPGateway) ResetDailyLimit(ctx context.Context, wallet, today string) error {
	w, err := NormalizeAddress("wallet", wallet)
	if err != nil {
		return err
	}
	return g.patch(ctx, "daily_limit_states", eqFilter("walletAddress", w), map[string]any{
		"spentToday": "0", "lastResetDay": today,
	})
}

func (g *HTTPGateway) InsertWhitelistEntry(ctx context.Context, e WhitelistEntry) error {
	w, err := NormalizeAddress("wallet", e.WalletAddress)
	if err != nil {
		return err
	}
	wl, err := NormalizeAddress("whitelisted", e.WhitelistedAddress)
	if err != nil {
		return err
	}
	e.WalletAddress, e.WhitelistedAddress = w, wl
	return g.upsertIdempotent(ctx, "whitelist_entries", "walletAddress,whitelistedAddress,addedAtBlock", e)
}

func (g *HTTPGateway) DeactivateWhitelistEntry(ctx context.Context, wallet, whitelisted string, removedAtBlock uint64) error {
	w, err := NormalizeAddress("wallet", wallet)
	if err != nil {
		return err
	}
	wl, err := NormalizeAddress("whitelisted", whitelisted)
	if err != nil {
		return err
	}
	filter := eqFilter("walletAddress", w)
	filter.Set("whitelistedAddress", "eq."+wl)
	filter.Set("isActive", "eq.true")
	return g.patch(ctx, "whitelist_entries", filter, map[string]any{"isActive": false, "removedAtBlock": removedAtBlock})
}

func (g *HTTPGateway) InsertModuleTransaction(ctx context.Context, t ModuleTransaction) error {
	w, err := NormalizeAddress("wallet", t.WalletAddress)
	if err != nil {
		return err
	}
	m, err := NormalizeAddress("module", t.ModuleAddress)
	if err != nil {
		return err
	}
	t.WalletAddress, t.ModuleAddress = w, m
	_, err = g.do(ctx, http.MethodPost, "module_transactions", nil, t, []string{"return=minimal"})
	return err
}

func (g *HTTPGateway) GetAllWalletAddresses(ctx context.Context) ([]string, error) {
	var out []string
	offset := 0
	for {
		q := url.Values{
			"select": {"address"},
			"limit":  {strconv.Itoa(defaultPageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		body, err := g.do(ctx, http.MethodGet, "wallets", q, nil, nil)
		if err != nil {
			return nil, err
		}
		var page []struct {
			Address string `json:"address"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, utils.Wrap(err, "store: decode wallet address page")
		}
		for _, row := range page {
			out = append(out, row.Address)
		}
		if len(page) < defaultPageSize {
			return out, nil
		}
		offset += defaultPageSize
	}
}

func (g *HTTPGateway) GetCheckpoint(ctx context.Context) (IndexerCheckpoint, error) {
	body, err := g.do(ctx, http.MethodGet, "indexer_checkpoint", url.Values{"limit": {"1"}}, nil, nil)
	if err != nil {
		return IndexerCheckpoint{}, err
	}
	var rows []IndexerCheckpoint
	if err := json.Unmarshal(body, &rows); err != nil {
		return IndexerCheckpoint{}, utils.Wrap(err, "store: decode checkpoint")
	}
	if len(rows) == 0 {
		return IndexerCheckpoint{}, nil
	}
	return rows[0], nil
}

func (g *HTTPGateway) SetCheckpoint(ctx context.Context, c IndexerCheckpoint) error {
	_, err := g.do(ctx, http.MethodPost, "rpc/set_checkpoint", nil, c, []string{"return=minimal"})
	return err
}
