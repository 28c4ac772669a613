/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package comid

import (
	"fmt"
	"net"

	"github.com/kentakayama/go-corim/internal/codec"
)

// MACAddr is an EUI-48 or EUI-64 address carried as a byte string.
type MACAddr net.HardwareAddr

func NewMACAddr(b []byte) (MACAddr, error) {
	m := MACAddr(b)
	if err := m.Valid(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m MACAddr) Valid() error {
	if n := len(m); n != 6 && n != 8 {
		return fmt.Errorf("%w: mac-addr must be 6 or 8 bytes, got %d", codec.ErrInvalidFormat, len(m))
	}
	return nil
}

func (m MACAddr) String() string {
	return net.HardwareAddr(m).String()
}

func (m MACAddr) MarshalCBOR() ([]byte, error) {
	if err := m.Valid(); err != nil {
		return nil, err
	}
	return codec.Marshal([]byte(m))
}

func (m *MACAddr) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := codec.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("%w: mac-addr must be a byte string", codec.ErrInvalidFormat)
	}
	addr := MACAddr(b)
	if err := addr.Valid(); err != nil {
		return err
	}
	*m = addr
	return nil
}

// IPAddr is an IPv4 or IPv6 address carried as a byte string.
type IPAddr net.IP

func NewIPAddr(b []byte) (IPAddr, error) {
	ip := IPAddr(b)
	if err := ip.Valid(); err != nil {
		return nil, err
	}
	return ip, nil
}

func (i IPAddr) Valid() error {
	if n := len(i); n != net.IPv4len && n != net.IPv6len {
		return fmt.Errorf("%w: ip-addr must be 4 or 16 bytes, got %d", codec.ErrInvalidFormat, len(i))
	}
	return nil
}

func (i IPAddr) String() string {
	return net.IP(i).String()
}

func (i IPAddr) MarshalCBOR() ([]byte, error) {
	if err := i.Valid(); err != nil {
		return nil, err
	}
	return codec.Marshal([]byte(i))
}

func (i *IPAddr) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := codec.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("%w: ip-addr must be a byte string", codec.ErrInvalidFormat)
	}
	addr := IPAddr(b)
	if err := addr.Valid(); err != nil {
		return err
	}
	*i = addr
	return nil
}
