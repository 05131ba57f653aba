// Package pkg, projede paylaşılan utility'leri barındırır.
// Bu dosya domain-level error tanımlarını içerir.
//
// Error karşılaştırması string yerine referans ile yapılır:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
package pkg

import "errors"

// Domain-level error'lar.
// Handler katmanı bu error'ları HTTP status code'larına map'ler.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")
	ErrInternal      = errors.New("internal error")

	// ErrPatchLoop, önerilen net patch'in ses geri besleme döngüsü (feedback loop)
	// oluşturacağı durumlarda döner. Patch persist edilmez.
	ErrPatchLoop = errors.New("patch would create a feedback loop")

	// ErrRateLimited, kullanıcı kısa sürede çok fazla istek gönderdiğinde döner.
	ErrRateLimited = errors.New("rate limited")

	// ErrBusy, veritabanı kilidi alınamadığında döner; istek tekrar denenebilir.
	ErrBusy = errors.New("resource busy, retry")
)
