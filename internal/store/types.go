package store

// TransactionType mirrors decoder.TransactionType at the storage
// boundary so this package has no import dependency on internal/decoder.
type TransactionType string

const (
	TxTypeTransfer      TransactionType = "transfer"
	TxTypeModuleConfig  TransactionType = "module_config"
	TxTypeWalletAdmin   TransactionType = "wallet_admin"
	TxTypeRecoverySetup TransactionType = "recovery_setup"
	TxTypeExternalCall  TransactionType = "external_call"
	TxTypeUnknown       TransactionType = "unknown"
)

type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "pending"
	TxStatusExecuted  TransactionStatus = "executed"
	TxStatusCancelled TransactionStatus = "cancelled"
)

type RecoveryStatus string

const (
	RecoveryStatusPending   RecoveryStatus = "pending"
	RecoveryStatusExecuted  RecoveryStatus = "executed"
	RecoveryStatusCancelled RecoveryStatus = "cancelled"
)

type ModuleType string

const (
	ModuleTypeDailyLimit ModuleType = "daily_limit"
	ModuleTypeWhitelist  ModuleType = "whitelist"
	ModuleTypeRecovery   ModuleType = "recovery"
)

// Wallet is the root entity created by a factory event; never deleted.
type Wallet struct {
	Address        string `json:"address"`
	Threshold      string `json:"threshold"`
	OwnerCount     int    `json:"ownerCount"`
	CreatedAtBlock uint64 `json:"createdAtBlock"`
	CreatedAtTx    string `json:"createdAtTx"`
}

// WalletOwner is unique on (wallet, owner, addedAtBlock); at most one
// row is active per (wallet, owner) at any time.
type WalletOwner struct {
	WalletAddress string  `json:"walletAddress"`
	OwnerAddress  string  `json:"ownerAddress"`
	AddedAtBlock  uint64  `json:"addedAtBlock"`
	AddedAtTx     string  `json:"addedAtTx"`
	RemovedAt     *uint64 `json:"removedAt,omitempty"`
	IsActive      bool    `json:"isActive"`
}

type Module struct {
	WalletAddress   string  `json:"walletAddress"`
	ModuleAddress   string  `json:"moduleAddress"`
	EnabledAtBlock  uint64  `json:"enabledAtBlock"`
	DisabledAtBlock *uint64 `json:"disabledAtBlock,omitempty"`
	IsActive        bool    `json:"isActive"`
}

// Transaction's TxHash is the on-chain content hash emitted by the
// wallet contract, not the hash of the transaction that carried the
// log.
type Transaction struct {
	WalletAddress     string            `json:"walletAddress"`
	TxHash            string            `json:"txHash"`
	To                string            `json:"to"`
	Value             string            `json:"value"`
	Data              string            `json:"data"`
	TransactionType   TransactionType   `json:"transactionType"`
	DecodedParams     map[string]any    `json:"decodedParams"`
	Status            TransactionStatus `json:"status"`
	ConfirmationCount int               `json:"confirmationCount"`
	SubmittedBy       string            `json:"submittedBy"`
	SubmittedAtBlock  uint64            `json:"submittedAtBlock"`
	SubmittedAtTx     string            `json:"submittedAtTx"`
	ExecutedAtBlock   *uint64           `json:"executedAtBlock,omitempty"`
	ExecutedAtTx      *string           `json:"executedAtTx,omitempty"`
	CancelledAtBlock  *uint64           `json:"cancelledAtBlock,omitempty"`
	CancelledAtTx     *string           `json:"cancelledAtTx,omitempty"`
}

type Confirmation struct {
	WalletAddress    string  `json:"walletAddress"`
	TxHash           string  `json:"txHash"`
	OwnerAddress     string  `json:"ownerAddress"`
	ConfirmedAtBlock uint64  `json:"confirmedAtBlock"`
	ConfirmedAtTx    string  `json:"confirmedAtTx"`
	RevokedAtBlock   *uint64 `json:"revokedAtBlock,omitempty"`
	RevokedAtTx      *string `json:"revokedAtTx,omitempty"`
	IsActive         bool    `json:"isActive"`
}

type Deposit struct {
	WalletAddress    string `json:"walletAddress"`
	SenderAddress    string `json:"senderAddress"`
	Amount           string `json:"amount"`
	DepositedAtBlock uint64 `json:"depositedAtBlock"`
	DepositedAtTx    string `json:"depositedAtTx"`
}

type RecoveryConfig struct {
	WalletAddress  string `json:"walletAddress"`
	Threshold      string `json:"threshold"`
	RecoveryPeriod string `json:"recoveryPeriod"`
	SetupAtBlock   uint64 `json:"setupAtBlock"`
	SetupAtTx      string `json:"setupAtTx"`
}

type RecoveryGuardian struct {
	WalletAddress   string `json:"walletAddress"`
	GuardianAddress string `json:"guardianAddress"`
	AddedAtBlock    uint64 `json:"addedAtBlock"`
	AddedAtTx       string `json:"addedAtTx"`
	IsActive        bool   `json:"isActive"`
}

// Recovery.ExecutionTime is unix seconds: initiationBlock's chain
// timestamp plus the config's recovery period.
type Recovery struct {
	WalletAddress     string         `json:"walletAddress"`
	RecoveryHash      string         `json:"recoveryHash"`
	NewOwners         []string       `json:"newOwners"`
	NewThreshold      string         `json:"newThreshold"`
	Initiator         string         `json:"initiator"`
	ApprovalCount     int            `json:"approvalCount"`
	RequiredThreshold string         `json:"requiredThreshold"`
	ExecutionTime     int64          `json:"executionTime"`
	Status            RecoveryStatus `json:"status"`
	InitiatedAtBlock  uint64         `json:"initiatedAtBlock"`
	InitiatedAtTx     string         `json:"initiatedAtTx"`
}

type RecoveryApproval struct {
	WalletAddress   string  `json:"walletAddress"`
	RecoveryHash    string  `json:"recoveryHash"`
	GuardianAddress string  `json:"guardianAddress"`
	ApprovedAtBlock uint64  `json:"approvedAtBlock"`
	ApprovedAtTx    string  `json:"approvedAtTx"`
	RevokedAtBlock  *uint64 `json:"revokedAtBlock,omitempty"`
	RevokedAtTx     *string `json:"revokedAtTx,omitempty"`
	IsActive        bool    `json:"isActive"`
}

// DailyLimitState.SpentToday must stay within [0, DailyLimit]; handlers
// clamp to 0 rather than persisting a negative remainder when the limit
// is raised mid-day.
type DailyLimitState struct {
	WalletAddress string `json:"walletAddress"`
	DailyLimit    string `json:"dailyLimit"`
	SpentToday    string `json:"spentToday"`
	LastResetDay  string `json:"lastResetDay"` // YYYY-MM-DD
}

type WhitelistEntry struct {
	WalletAddress      string  `json:"walletAddress"`
	WhitelistedAddress string  `json:"whitelistedAddress"`
	Limit              string  `json:"limit"`
	AddedAtBlock       uint64  `json:"addedAtBlock"`
	RemovedAtBlock     *uint64 `json:"removedAtBlock,omitempty"`
	IsActive           bool    `json:"isActive"`
}

// ModuleTransaction is append-only module activity history.
type ModuleTransaction struct {
	WalletAddress  string     `json:"walletAddress"`
	ModuleType     ModuleType `json:"moduleType"`
	ModuleAddress  string     `json:"moduleAddress"`
	To             string     `json:"to"`
	Value          string     `json:"value"`
	RemainingLimit *string    `json:"remainingLimit,omitempty"`
	AtBlock        uint64     `json:"atBlock"`
	AtTx           string     `json:"atTx"`
}

// IndexerCheckpoint is a singleton row: exactly one exists at a time.
type IndexerCheckpoint struct {
	LastIndexedBlock uint64 `json:"lastIndexedBlock"`
	LastIndexedAt    int64  `json:"lastIndexedAt"`
	IsSyncing        bool   `json:"isSyncing"`
}
