package models

import "strings"

type Network string

const (
	NetworkTron Network = "tron"
)

// ParseNetwork 大小写不敏感，未知网络原样返回由调用方判断是否支持
func ParseNetwork(s string) Network {
	return Network(strings.ToLower(strings.TrimSpace(s)))
}

func (n Network) String() string {
	return string(n)
}
