package config

import (
	"fmt"
	"os"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/zeromicro/go-zero/core/jsonx"
)

// LoadKeypair 读取 solana-keygen 生成的 JSON 数组格式密钥（64 字节）
func LoadKeypair(path string) (soltypes.Account, error) {
	data, err := os.ReadFile(ExpandHome(path))
	if err != nil {
		return soltypes.Account{}, fmt.Errorf("read keypair %s: %w", path, err)
	}

	var raw []byte
	var ints []int
	if err := jsonx.Unmarshal(data, &ints); err != nil {
		return soltypes.Account{}, fmt.Errorf("parse keypair %s: %w", path, err)
	}
	for _, v := range ints {
		if v < 0 || v > 255 {
			return soltypes.Account{}, fmt.Errorf("parse keypair %s: byte out of range: %d", path, v)
		}
		raw = append(raw, byte(v))
	}

	account, err := soltypes.AccountFromBytes(raw)
	if err != nil {
		return soltypes.Account{}, fmt.Errorf("invalid keypair %s: %w", path, err)
	}
	return account, nil
}

// SaveKeypair 以 solana-keygen 格式写入密钥，文件权限 0600
func SaveKeypair(path string, account soltypes.Account) error {
	ints := make([]int, len(account.PrivateKey))
	for i, b := range account.PrivateKey {
		ints[i] = int(b)
	}
	data, err := jsonx.Marshal(ints)
	if err != nil {
		return err
	}
	return os.WriteFile(ExpandHome(path), data, 0o600)
}
