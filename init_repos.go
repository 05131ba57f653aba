// Package main: Repository katmanı başlatma.
//
// initRepositories, tüm repository implementasyonlarını oluşturur.
// Her repository bir SQL.DB bağlantısı alır ve interface döner.
package main

import (
	"database/sql"

	"github.com/akinalp/nexus/repository"
)

// Repositories, tüm repository instance'larını tutan container struct.
type Repositories struct {
	Net        repository.VoiceNetRepository
	Patch      repository.NetPatchRepository
	StateCache repository.StateCacheRepository
}

// initRepositories, veritabanı bağlantısından tüm repository'leri oluşturur.
func initRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Net:        repository.NewSQLiteVoiceNetRepo(db),
		Patch:      repository.NewSQLiteNetPatchRepo(db),
		StateCache: repository.NewSQLiteStateCacheRepo(db),
	}
}
