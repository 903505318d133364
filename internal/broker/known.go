package broker

// Application ids de la flota conocida.
const (
	AuthenticatorAppID  = "com.azure.authenticator"
	CompanyPortalAppID  = "com.microsoft.windowsintune.companyportal"
	LinkToWindowsAppID  = "com.microsoft.appmanager"
	BrokerHostAppID     = "com.microsoft.identity.testuserapp"
	MockAuthenticatorID = "com.microsoft.mockauthapp"
	MockCompanyPortalID = "com.microsoft.mockcp"
	MockLinkToWindowsID = "com.microsoft.mockltw"
)

// LegacyAccountType es el tipo de cuenta que registra el broker activo en el
// registro de cuentas del sistema.
const LegacyAccountType = "com.microsoft.workaccount"

var (
	ProdAuthenticator = Candidate{Identity: Identity{
		ApplicationID:      AuthenticatorAppID,
		SigningFingerprint: "Gu8CuaYmSV5CHWd6dz3tGPXIE+YTalCVIXi5lEBXpvUgsMKoHbU9Rqou3WNRNU1tsz8pvEADTCCJ5f02fbw9qw==",
		Nickname:           "prodAuthenticator",
	}}

	ProdCompanyPortal = Candidate{Identity: Identity{
		ApplicationID:      CompanyPortalAppID,
		SigningFingerprint: "jPpMoaNvcxSLMX4yG4C3Gf86rtTqh33SqpuRKg4WOP+MnnpA52zZgvKLW76U4Cqqf68iaBk9W7k/jhciiSAtgQ==",
		Nickname:           "prodCompanyPortal",
	}}

	ProdLinkToWindows = Candidate{Identity: Identity{
		ApplicationID:      LinkToWindowsAppID,
		SigningFingerprint: "WhUdh04ZkQLmNb//lKmohyqDdPMWXHcI0O3AvoLMtgF/smnED4r+Vguvgj6d4QG77Jl3avUKt6LeqF2TJPZVzg==",
		Nickname:           "prodLinkToWindows",
	}}

	DebugAuthenticator = Candidate{Debug: true, Identity: Identity{
		ApplicationID:      AuthenticatorAppID,
		SigningFingerprint: "pdAtoxfsEwbpQsIaua5Uobl5AQEjqt40aPXI7UY1lIW0NTmg0G4jHQ5T5mujSjjU06q4mEHs5hb6z/Mr0PNlmQ==",
		Nickname:           "debugAuthenticator",
	}}

	DebugLinkToWindows = Candidate{Debug: true, Identity: Identity{
		ApplicationID:      LinkToWindowsAppID,
		SigningFingerprint: "x28mHDILP8IZRH6EfjD4zC1bcpgk8euKS91klxoddu8+e34xEgy3Q9XTa3ySY7C7EXX4o/EJpDV8MqmEfIf7LA==",
		Nickname:           "debugLinkToWindows",
	}}

	DebugBrokerHost = Candidate{Debug: true, Identity: Identity{
		ApplicationID:      BrokerHostAppID,
		SigningFingerprint: "xxAk8S05zu0Nkce+X2J6IKJ2e7YE4F9ZorZj0YnYUQ2vw8vLc8VGGOqJdTnVySbbcy9VY8UDbOfeOETSErYllw==",
		Nickname:           "debugBrokerHost",
	}}

	DebugMockAuthenticator = Candidate{Debug: true, Identity: Identity{
		ApplicationID:      MockAuthenticatorID,
		SigningFingerprint: "QhjKSYYD31K7+C4q4Mpd08crE0LN/3GgnKVVuej4JWckUTc0Wp/i//LWLQnANaWiAjdESJJrjavu0cE6hkQihQ==",
		Nickname:           "debugMockAuthenticator",
	}}

	DebugMockCompanyPortal = Candidate{Debug: true, Identity: Identity{
		ApplicationID:      MockCompanyPortalID,
		SigningFingerprint: "EZ2RCcsmf869Ec41PgHHnFdI0MgmVsADFFy8AtcfEKsjD1YAPtKxCMZVdT+y+K1IWRnPk4Lf2PUAcL5N49OqAA==",
		Nickname:           "debugMockCompanyPortal",
	}}

	DebugMockLinkToWindows = Candidate{Debug: true, Identity: Identity{
		ApplicationID:      MockLinkToWindowsID,
		SigningFingerprint: "felxzv/rpqa69dOADXVVKnawk5x8snBW2k/kDxzQLVkbcdzAvrGm8gcBRItzUGIQTupHCTWksN6WBGbn+b0KIA==",
		Nickname:           "debugMockLinkToWindows",
	}}
)

// KnownCandidates devuelve la flota conocida en orden de prioridad.
// Las builds debug solo se incluyen si trustDebug es true.
func KnownCandidates(trustDebug bool) *CandidateSet {
	all := NewCandidateSet(
		ProdAuthenticator,
		ProdCompanyPortal,
		ProdLinkToWindows,
		DebugAuthenticator,
		DebugLinkToWindows,
		DebugBrokerHost,
		DebugMockAuthenticator,
		DebugMockCompanyPortal,
		DebugMockLinkToWindows,
	)
	return all.Filter(trustDebug)
}
