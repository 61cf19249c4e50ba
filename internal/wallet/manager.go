// Package wallet manages local signing accounts. Keys live in the OS
// keyring; names and addresses live in the config directory.
package wallet

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Mohsinsiddi/w3kit/internal/config"
	"github.com/Mohsinsiddi/w3kit/internal/middleware"
)

var (
	ErrWalletNotFound = errors.New("wallet not found")
	ErrWalletExists   = errors.New("wallet already exists")
)

// Store persists wallet metadata. *config.Config implements it.
type Store interface {
	LoadWallets() (*config.WalletsFile, error)
	SaveWallets(*config.WalletsFile) error
}

// Manager handles wallet import, lookup and signer loading.
type Manager struct {
	store Store
	keys  KeystoreBackend
	now   func() time.Time
}

// NewManager returns a manager over store and keys.
func NewManager(store Store, keys KeystoreBackend) *Manager {
	return &Manager{store: store, keys: keys, now: time.Now}
}

// Import stores hexKey in the keystore under name and records the wallet.
// The first wallet becomes the default.
func (m *Manager) Import(name, hexKey string) (*config.Wallet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("wallet name is required")
	}
	signer, err := NewSigner(hexKey)
	if err != nil {
		return nil, err
	}
	wf, err := m.store.LoadWallets()
	if err != nil {
		return nil, fmt.Errorf("loading wallets: %w", err)
	}
	for _, w := range wf.Wallets {
		if w.Name == name {
			return nil, fmt.Errorf("%q: %w", name, ErrWalletExists)
		}
		if strings.EqualFold(w.Address, signer.Address().Hex()) {
			return nil, fmt.Errorf("%s is already imported as %q: %w", w.Address, w.Name, ErrWalletExists)
		}
	}

	ref, err := m.keys.Store(name, hexKey)
	if err != nil {
		return nil, fmt.Errorf("storing key: %w", err)
	}
	w := config.Wallet{
		Name:      name,
		Address:   signer.Address().Hex(),
		KeyRef:    ref,
		IsDefault: len(wf.Wallets) == 0,
		CreatedAt: m.now().UTC().Format(time.RFC3339),
	}
	wf.Wallets = append(wf.Wallets, w)
	if err := m.store.SaveWallets(wf); err != nil {
		return nil, fmt.Errorf("saving wallets: %w", err)
	}
	return &w, nil
}

// List returns the wallets sorted by name.
func (m *Manager) List() ([]config.Wallet, error) {
	wf, err := m.store.LoadWallets()
	if err != nil {
		return nil, err
	}
	out := slices.Clone(wf.Wallets)
	slices.SortFunc(out, func(a, b config.Wallet) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Get returns a wallet by name, or the default wallet for an empty name.
func (m *Manager) Get(name string) (*config.Wallet, error) {
	wallets, err := m.List()
	if err != nil {
		return nil, err
	}
	for i := range wallets {
		w := &wallets[i]
		if (name == "" && w.IsDefault) || (name != "" && w.Name == name) {
			return w, nil
		}
	}
	if name == "" {
		return nil, fmt.Errorf("no default wallet: %w", ErrWalletNotFound)
	}
	return nil, fmt.Errorf("%q: %w", name, ErrWalletNotFound)
}

// SetDefault marks name as the default wallet.
func (m *Manager) SetDefault(name string) error {
	return m.update(name, func(wf *config.WalletsFile, _ int) {
		for i := range wf.Wallets {
			wf.Wallets[i].IsDefault = wf.Wallets[i].Name == name
		}
	})
}

// Remove deletes a wallet and its stored key.
func (m *Manager) Remove(name string) error {
	var ref string
	err := m.update(name, func(wf *config.WalletsFile, idx int) {
		ref = wf.Wallets[idx].KeyRef
		wf.Wallets = slices.Delete(wf.Wallets, idx, idx+1)
	})
	if err != nil {
		return err
	}
	if ref == "" {
		return nil
	}
	return m.keys.Delete(ref)
}

func (m *Manager) update(name string, fn func(wf *config.WalletsFile, idx int)) error {
	wf, err := m.store.LoadWallets()
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(wf.Wallets, func(w config.Wallet) bool { return w.Name == name })
	if idx < 0 {
		return fmt.Errorf("%q: %w", name, ErrWalletNotFound)
	}
	fn(wf, idx)
	return m.store.SaveWallets(wf)
}

// Signer loads the key of the named wallet (the default for "").
func (m *Manager) Signer(name string) (*Signer, error) {
	w, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	hexKey, err := m.keys.Retrieve(w.KeyRef)
	if err != nil {
		return nil, fmt.Errorf("retrieving key for %q: %w", w.Name, err)
	}
	s, err := NewSigner(hexKey)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(s.Address().Hex(), w.Address) {
		return nil, fmt.Errorf("key stored for %q does not match address %s", w.Name, w.Address)
	}
	return s, nil
}

// TxSigners loads the signer for from when it is a local wallet address.
// Unknown addresses yield no signers so the node signs instead.
func (m *Manager) TxSigners(from common.Address) ([]middleware.TxSigner, error) {
	wallets, err := m.List()
	if err != nil {
		return nil, err
	}
	for _, w := range wallets {
		if common.HexToAddress(w.Address) == from {
			s, err := m.Signer(w.Name)
			if err != nil {
				return nil, err
			}
			return []middleware.TxSigner{s}, nil
		}
	}
	return nil, nil
}
