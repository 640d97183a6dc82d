//go:build !unix

package traffic

import "syscall"

func setSocketOptions(network, address string, c syscall.RawConn) error {
	return nil
}
