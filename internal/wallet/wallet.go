// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

var ErrUnknownWallet = errors.New("wallet: unknown name")

// Wallet is a named participant key.
type Wallet struct {
	Name       string
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// NewWallet создаёт кошелёк из base58-encoded приватного ключа.
func NewWallet(name, privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		Name:       name,
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

// SignTransaction подписывает транзакцию ключом кошелька.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey) {
			return &w.PrivateKey
		}
		return nil
	})
	return err
}

// Keystore is the CSV file of participant keys the CLI signs with.
// Columns: name, private key (base58).
type Keystore struct {
	mu      sync.RWMutex
	path    string
	wallets map[string]*Wallet
}

// Open loads path. A missing file gives an empty keystore that Save
// will create.
func Open(path string) (*Keystore, error) {
	ks := &Keystore{path: path, wallets: make(map[string]*Wallet)}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return ks, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	for i, record := range records {
		if i == 0 && len(record) == 2 && record[0] == "name" {
			continue
		}
		if len(record) != 2 {
			return nil, fmt.Errorf("line %d: expected 2 columns, got %d", i+1, len(record))
		}
		w, err := NewWallet(record[0], record[1])
		if err != nil {
			return nil, fmt.Errorf("line %d (%s): %w", i+1, record[0], err)
		}
		ks.wallets[w.Name] = w
	}
	return ks, nil
}

// Generate creates a fresh key under name, or returns the existing one.
func (ks *Keystore) Generate(name string) (*Wallet, bool, error) {
	if name == "" {
		return nil, false, errors.New("wallet name is empty")
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if w, ok := ks.wallets[name]; ok {
		return w, false, nil
	}
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, false, fmt.Errorf("generate key: %w", err)
	}
	w := &Wallet{Name: name, PrivateKey: key, PublicKey: key.PublicKey()}
	ks.wallets[name] = w
	return w, true, nil
}

func (ks *Keystore) Get(name string) (*Wallet, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	w, ok := ks.wallets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWallet, name)
	}
	return w, nil
}

// Resolve maps a wallet name or a base58 public key to an identity.
func (ks *Keystore) Resolve(nameOrKey string) (solana.PublicKey, error) {
	if w, err := ks.Get(nameOrKey); err == nil {
		return w.PublicKey, nil
	}
	key, err := solana.PublicKeyFromBase58(nameOrKey)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrUnknownWallet, nameOrKey)
	}
	return key, nil
}

// Names returns the wallet names in sorted order.
func (ks *Keystore) Names() []string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	names := make([]string, 0, len(ks.wallets))
	for name := range ks.wallets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save rewrites the keystore file with owner-only permissions.
func (ks *Keystore) Save() error {
	names := ks.Names()

	ks.mu.RLock()
	defer ks.mu.RUnlock()

	tmp := ks.path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create keystore: %w", err)
	}

	writer := csv.NewWriter(file)
	_ = writer.Write([]string{"name", "private_key"})
	for _, name := range names {
		_ = writer.Write([]string{name, ks.wallets[name].PrivateKey.String()})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, ks.path)
}
