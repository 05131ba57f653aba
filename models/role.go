package models

// Permission, kullanıcı yetkilerini bit flag olarak temsil eder.
//
// Yetkiler harici backend'in verdiği access token'ın içinde taşınır
// (TokenClaims.Permissions). Bu servis rol tablosu tutmaz.
//
// Kontrol: (permissions & PermSpeak) != 0 → bu yetki var mı?
type Permission int64

const (
	PermConnectVoice  Permission = 1 << iota // 1
	PermSpeak                                // 2
	PermCommandNet                           // 4: hail grant/deny/revoke, command bus
	PermManagePatches                        // 8
	PermManageNets                           // 16
	PermAdmin                                // 32
)

// PermAll, tüm yetkilerin toplamıdır.
const PermAll Permission = (1 << 6) - 1

// Has, belirli bir yetkinin var olup olmadığını kontrol eder.
func (p Permission) Has(perm Permission) bool {
	// ADMIN yetkisi her şeye izin verir
	if p&PermAdmin != 0 {
		return true
	}
	return p&perm != 0
}
