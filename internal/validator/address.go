package validator

import (
	"fmt"
	"regexp"

	"tron-wallet-explorer/internal/models"
	"tron-wallet-explorer/pkg/errors"
)

// tronAddressPattern T开头，其余33位为base58字符（不含0 O I l）
var tronAddressPattern = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)

var patterns = map[models.Network]*regexp.Regexp{
	models.NetworkTron: tronAddressPattern,
}

// Validate 纯本地校验，必须在任何远程调用之前执行
func Validate(network models.Network, address string) error {
	pattern, ok := patterns[network]
	if !ok {
		return errors.New(errors.ErrUnsupportedNetwork,
			fmt.Sprintf("Network %s not supported", network), nil)
	}

	if !pattern.MatchString(address) {
		return errors.New(errors.ErrInvalidAddress, "Invalid address", nil)
	}

	return nil
}

// IsTronAddress 只做格式匹配，不校验checksum
func IsTronAddress(address string) bool {
	return tronAddressPattern.MatchString(address)
}
