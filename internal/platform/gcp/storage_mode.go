package gcp

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

type ObjectStorageMode string

const (
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

// ResolveObjectStorageModeFromEnv picks the storage backend. An explicit
// OBJECT_STORAGE_MODE wins; otherwise a set STORAGE_EMULATOR_HOST implies
// emulator mode so local compose setups need only one variable.
func ResolveObjectStorageModeFromEnv() (ObjectStorageMode, string, error) {
	host := strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/")
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("OBJECT_STORAGE_MODE")))

	var mode ObjectStorageMode
	switch ObjectStorageMode(raw) {
	case "":
		if host != "" {
			mode = ObjectStorageModeGCSEmulator
		} else {
			mode = ObjectStorageModeGCS
		}
	case ObjectStorageModeGCS:
		mode = ObjectStorageModeGCS
	case ObjectStorageModeGCSEmulator:
		mode = ObjectStorageModeGCSEmulator
	default:
		return "", "", fmt.Errorf(
			"invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)",
			raw, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator,
		)
	}

	if mode == ObjectStorageModeGCSEmulator {
		if host == "" {
			return "", "", fmt.Errorf(
				"OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST to be set",
				ObjectStorageModeGCSEmulator,
			)
		}
		u, err := url.Parse(host)
		if err != nil || strings.TrimSpace(u.Scheme) == "" || strings.TrimSpace(u.Host) == "" {
			return "", "", fmt.Errorf(
				"invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443",
				host,
			)
		}
	}
	return mode, host, nil
}
