// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

package bridgelog

import "github.com/ethereum/go-ethereum/log"

func Info(msg string, ctx ...interface{}) {
	log.Info("[depositbridge] "+msg, ctx...)
}

func Warn(msg string, ctx ...interface{}) {
	log.Warn("[depositbridge] "+msg, ctx...)
}

func Error(msg string, ctx ...interface{}) {
	log.Error("[depositbridge] "+msg, ctx...)
}
