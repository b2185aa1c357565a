// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCredentialEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewCredentialEncryptor("a-test-jwt-secret-at-least-this-long")
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", ciphertext)

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, "hunter2", plaintext)
}

func TestCredentialEncryptor_DifferentSecretsProduceDifferentKeys(t *testing.T) {
	encA, err := NewCredentialEncryptor("secret-a-at-least-this-long")
	require.NoError(t, err)
	encB, err := NewCredentialEncryptor("secret-b-at-least-this-long")
	require.NoError(t, err)

	ciphertext, err := encA.Encrypt("hunter2")
	require.NoError(t, err)

	_, err = encB.Decrypt(ciphertext)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestNewCredentialEncryptor_RejectsEmptySecret(t *testing.T) {
	_, err := NewCredentialEncryptor("")
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestCredentialEncryptor_RejectsEmptyPlaintext(t *testing.T) {
	enc, err := NewCredentialEncryptor("a-test-jwt-secret-at-least-this-long")
	require.NoError(t, err)
	_, err = enc.Encrypt("")
	require.ErrorIs(t, err, ErrEmptyPlaintext)
}

func TestCredentialEncryptor_RejectsTamperedCiphertext(t *testing.T) {
	enc, err := NewCredentialEncryptor("a-test-jwt-secret-at-least-this-long")
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("hunter2")
	require.NoError(t, err)

	tampered := ciphertext[:len(ciphertext)-2] + "xx"
	_, err = enc.Decrypt(tampered)
	require.Error(t, err)
}

func TestMaskCredential(t *testing.T) {
	require.Equal(t, "", MaskCredential(""))
	require.Equal(t, "****", MaskCredential("ab"))
	require.Equal(t, "****...cdef", MaskCredential("abcdef"))
}

func TestCredentialEncryptor_ValidateEncryptionSetup(t *testing.T) {
	enc, err := NewCredentialEncryptor("a-test-jwt-secret-at-least-this-long")
	require.NoError(t, err)
	require.NoError(t, enc.ValidateEncryptionSetup())
}
