package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client used for household imports.
var UserAgent = "Go-Enroll/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName           = "Go Enroll"
	AppID             = "com.github.tartampluch.go-enroll"
	KeyringService    = "com.github.tartampluch.go-enroll"
	LocalhostBindAddr = "127.0.0.1"
	LogFileName       = "app.log"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	// Used for sensitive files like logs.
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion      = "version"
	FlagDebug        = "debug"
	FlagDescVersion  = "Show application version and exit"
	FlagDescDebug    = "Enable debug logging to stdout"
	MsgVersionOutput = "%s version %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Environment Variables
// -----------------------------------------------------------------------------

const (
	EnvStorage     = "ENROLL_STORAGE"
	EnvRedisURL    = "ENROLL_REDIS_URL"
	EnvServerPort  = "ENROLL_SERVER_PORT"
	EnvSubmitDelay = "ENROLL_SUBMIT_DELAY"

	StorageBackendPreferences = "preferences"
	StorageBackendRedis       = "redis"
	StorageBackendMemory      = "memory"
)

// -----------------------------------------------------------------------------
// Eligibility Rules
// -----------------------------------------------------------------------------

const (
	// MinorAgeThreshold: a person strictly younger than this is flagged as a minor.
	MinorAgeThreshold = 19

	// SeniorAgeThreshold: a person strictly older than this is flagged as a senior.
	// Age 65 itself is not flagged.
	SeniorAgeThreshold = 65

	// PrimaryApplicantID is the fixed identifier of the primary applicant.
	PrimaryApplicantID = "primary"
)

// -----------------------------------------------------------------------------
// Storage Keys (key-value store)
// -----------------------------------------------------------------------------

const (
	KeyDateOfBirth             = "dateOfBirth"
	KeyGender                  = "gender"
	KeyTobaccoUsage            = "tobaccoUsage"
	KeyPrimaryApplicant        = "primaryApplicant"
	KeyFamilyMembers           = "familyMembers"
	KeyPendingFamilyMembers    = "pendingFamilyMembers"
	KeyIncomeSources           = "incomeSources"
	KeyIncomeSourcesPrefix     = "incomeSources:"
	KeyEligibilityAcknowledged = "eligibilityAcknowledged"
	KeyEnrollmentSubmitted     = "enrollmentSubmitted"

	// PrefLanguage is a UI preference, not part of the household snapshot.
	PrefLanguage    = "language"
	PrefLastRun     = "lastRunVersion"
	DefaultLanguage = "en"

	// Import dialog preferences. The password goes to the keyring under PrefImportUser.
	PrefImportMode = "importMode"
	PrefImportURL  = "importUrl"
	PrefImportUser = "importUser"
	PrefImportPath = "importPath"

	// RedisKeyPrefix namespaces every key written by the Redis backend.
	RedisKeyPrefix = "go-enroll:"

	ValueTrue  = "true"
	ValueFalse = "false"
)

// SupportedLanguages defines the list of available UI languages (ISO 639-1).
var SupportedLanguages = []string{"en", "es"}

// -----------------------------------------------------------------------------
// Validation Error Codes
// -----------------------------------------------------------------------------

const (
	CodeRequired         = "required"
	CodeInvalidDate      = "invalid_date"
	CodeFutureDate       = "future_date"
	CodeInvalidEmail     = "invalid_email"
	CodeInvalidZip       = "invalid_zip"
	CodeInvalidChoice    = "invalid_choice"
	CodeInvalidAmount    = "invalid_amount"
	CodeInvalidFrequency = "invalid_frequency"
)

// -----------------------------------------------------------------------------
// UI Constants
// -----------------------------------------------------------------------------

const (
	IntakeWindowWidth  = 480
	ReviewWindowWidth  = 720
	ReviewWindowHeight = 640

	LayoutColumnsDouble = 2
	LayoutColumnsTriple = 3

	PlaceholderDate = "MM/DD/YYYY"
	AgeUnknown      = "-"
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyWinIntake          = "win_intake_title"
	TKeyWinReview          = "win_review_title"
	TKeyLblDateOfBirth     = "lbl_date_of_birth"
	TKeyLblGender          = "lbl_gender"
	TKeyLblTobacco         = "lbl_tobacco"
	TKeyLblAge             = "lbl_age"
	TKeyLblHouseholdSize   = "lbl_household_size"
	TKeyLblHouseholdIncome = "lbl_household_income"
	TKeyLblIncluded        = "lbl_included_in_coverage"
	TKeyLblPrimary         = "lbl_primary"
	TKeyLblSpouse          = "lbl_spouse"
	TKeyLblDependent       = "lbl_dependent"
	TKeyBtnContinue        = "btn_continue"
	TKeyBtnEdit            = "btn_edit"
	TKeyBtnSave            = "btn_save"
	TKeyBtnCancel          = "btn_cancel"
	TKeyBtnRemove          = "btn_remove"
	TKeyBtnAddSpouse       = "btn_add_spouse"
	TKeyBtnAddDependent    = "btn_add_dependent"
	TKeyBtnSubmit          = "btn_submit"
	TKeyBtnContinueAnyway  = "btn_continue_anyway"
	TKeyBtnGoBack          = "btn_go_back"
	TKeyBtnOK              = "btn_ok"

	TKeySectionPersonal = "section_personal"
	TKeySectionContact  = "section_contact"
	TKeySectionAddress  = "section_address"
	TKeySectionIdentity = "section_identity"

	TKeyTitleEligibility   = "title_eligibility"
	TKeyNoticeSenior       = "notice_senior"        // Requires Name, Age
	TKeyNoticeMinor        = "notice_minor"         // Requires Name, Age
	TKeyNoticeIntakeSenior = "notice_intake_senior" // Hard block explanation
	TKeyNotifSaveFailed    = "notif_save_failed"
	TKeyNotifLoadFailed    = "notif_load_failed"
	TKeyNotifSubmitted     = "notif_submitted" // Requires ID
	TKeyNotifSubmitting    = "notif_submitting"

	TKeyOptMale      = "opt_male"
	TKeyOptFemale    = "opt_female"
	TKeyOptSmoker    = "opt_smoker"
	TKeyOptNonSmoker = "opt_non_smoker"

	TKeyEvtMinorMilestone  = "event_minor_milestone"  // Requires Name
	TKeyEvtSeniorMilestone = "event_senior_milestone" // Requires Name

	TKeyOptYes = "opt_yes"
	TKeyOptNo  = "opt_no"

	TKeySectionIncome = "section_income"
	TKeyBtnAddIncome  = "btn_add_income"
	TKeyFreqMonthly   = "freq_monthly"
	TKeyFreqBiweekly  = "freq_biweekly"
	TKeyFreqWeekly    = "freq_weekly"
	TKeyFreqYearly    = "freq_yearly"

	TKeyWinImport         = "win_import_title"
	TKeyBtnImport         = "btn_import"
	TKeyBtnBrowse         = "btn_browse"
	TKeyModeWeb           = "mode_web"
	TKeyModeLocal         = "mode_local"
	TKeyLblURL            = "lbl_url"
	TKeyLblUser           = "lbl_user"
	TKeyLblPass           = "lbl_pass"
	TKeyLblPath           = "lbl_path"
	TKeyLblLanguage       = "lbl_language"
	TKeyLblPending        = "lbl_pending"
	TKeyLblCalendar       = "lbl_calendar"
	TKeyLblMilestones     = "lbl_milestones" // Requires Count
	TKeyNotifImported     = "notif_imported" // Requires Count
	TKeyNotifImportFailed = "notif_import_failed"
	TKeyNotifBlocked      = "notif_blocked"

	// Validation error codes are translated with this prefix (e.g. "err_required").
	TKeyErrPrefix = "err_"
	// Field labels are translated with this prefix (e.g. "field_firstName").
	TKeyFieldPrefix = "field_"
)

// -----------------------------------------------------------------------------
// Date Formats
// -----------------------------------------------------------------------------

const (
	// DateFormatCanonical is the persisted and displayed MM/DD/YYYY form.
	DateFormatCanonical = "01/02/2006"
	// DateFormatLenient accepts one or two digit months and days.
	DateFormatLenient   = "1/2/2006"
	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"

	// DatePartialMaxLen is the length of a complete MM/DD/YYYY input.
	DatePartialMaxLen = 10
	DateSeparator     = '/'
)

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	ICalVersion = "2.0"
	ICalProdid  = "-//Go Enroll//Eligibility//EN"
	ICalCalName = "Coverage milestones"
	ICalMethod  = "PUBLISH"
	ICalScale   = "GREGORIAN"
	ICalDomain  = "goenroll"

	PropUID        = "UID"
	PropSummary    = "SUMMARY"
	PropDTStart    = "DTSTART"
	PropDTStamp    = "DTSTAMP"
	PropRefresh    = "REFRESH-INTERVAL"
	PropVersion    = "VERSION"
	PropProdid     = "PRODID"
	PropXWRCalName = "X-WR-CALNAME"
	PropCalScale   = "CALSCALE"
	PropMethod     = "METHOD"
	PropCategories = "CATEGORIES"

	VCardBDAY       = "BDAY"
	VCardFN         = "FN"
	VCardCategories = "CATEGORIES"
	VCardEmail      = "EMAIL"
	VCardTel        = "TEL"
	VCardGender     = "GENDER"

	// VCardSpouseCategory marks a contact as the applicant's spouse.
	VCardSpouseCategory = "spouse"

	MilestoneMinor  = "minor-coverage-end"
	MilestoneSenior = "senior-eligibility"

	DefaultICalRefresh = 24 * time.Hour

	UIDSalt         = "go-enroll-v1-"
	UIDHashLength   = 16
	FormatHashInput = "%s|%s|%s"
	FormatUID       = "%s-%s@%s"

	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"
)

// -----------------------------------------------------------------------------
// Import Sources
// -----------------------------------------------------------------------------

const (
	SourceModeWeb   = "web"
	SourceModeLocal = "local"
	SchemeHTTP      = "http"
	SchemeHTTPS     = "https"
	ExtVCF          = ".vcf"
	ExtVCard        = ".vcard"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	RetryAfterSeconds   = "10"
	AllowedMethods      = "GET, HEAD"
	MaxHTTPResponseSize = 16 * 1024 * 1024 // 16MB
	DefaultServerPort   = "18081"
	DefaultSubmitDelay  = 1500 * time.Millisecond
	AddrSeparator       = ":"

	RouteCalendar   = "/calendar.ics"
	RouteMilestones = "/milestones.json"
	RouteMetrics    = "/metrics"
	RouteHealth     = "/healthz"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"
	HeaderAccept          = "Accept"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeTextPlain       = "text/plain; charset=utf-8"
	MimeNoSniff         = "nosniff"
	MimeJSON            = "application/json"
	MimeVCard           = "text/vcard, text/x-vcard;q=0.9, */*;q=0.5"
	CacheControlPrivate = "private, no-cache"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrLocalPathEmpty    = "configuration error: local path is empty"
	ErrWebURLEmpty       = "configuration error: web URL is empty"
	ErrFetcherMissing    = "internal error: network fetcher is not initialized"
	ErrModeUnsupport     = "configuration error: unsupported source mode"
	ErrServerStartup     = "server startup failed"
	ErrServerShutdown    = "server shutdown failed"
	ErrPortRequired      = "server port is required"
	ErrInvalidURL        = "invalid URL structure"
	ErrProtocol          = "unsupported protocol scheme (http/https only)"
	ErrFetchRequest      = "failed to create address book request"
	ErrFetchNetwork      = "network error during address book fetch"
	ErrFetchStatus       = "address book server returned unexpected status"
	ErrVCardParse        = "failed to parse vCard stream"
	ErrICalEncode        = "failed to encode iCalendar data"
	ErrEncodeMilestones  = "failed to encode milestone list"
	ErrLogFile           = "failed to open log file"
	ErrCacheDir          = "could not determine user cache dir"
	ErrCreateDir         = "could not create app cache dir"
	ErrAppFailed         = "application failed unexpectedly"
	ErrWriteResp         = "failed to write response body"
	ErrLocalesAccess     = "failed to access embedded locales"
	ErrLocaleLoad        = "failed to load locale file"
	ErrLocNotInit        = "localizer not initialized"
	ErrLoadHousehold     = "failed to load household"
	ErrSaveHousehold     = "failed to save household"
	ErrStoreGet          = "key-value store read failed"
	ErrStoreSet          = "key-value store write failed"
	ErrStoreRemove       = "key-value store remove failed"
	ErrStoreClose        = "key-value store close failed"
	ErrVaultRead         = "failed to read secret from keyring"
	ErrVaultWrite        = "failed to write secret to keyring"
	ErrRedisURL          = "parse redis URL"
	ErrRedisPing         = "redis ping failed"
	ErrRedisURLMissing   = "configuration error: redis URL is empty"
	ErrUnknownPerson     = "unknown person"
	ErrSpouseExists      = "a spouse is already part of the household"
	ErrInvalidMemberType = "invalid family member type"
	ErrNotEditing        = "section is not in edit mode"
	ErrUnknownField      = "field does not belong to section"
	ErrUnknownSection    = "unknown section"
	ErrOverrideForbidden = "eligibility block cannot be overridden at this step"
	ErrSubmitInFlight    = "a submission is already in progress"
	ErrAlreadySubmitted  = "enrollment has already been submitted"
	ErrEligibilityBlock  = "eligibility gate refused to advance"
	ErrNoticeUnacked     = "eligibility notice not acknowledged"
	ErrValidation        = "validation failed"
	ErrEncodeSnapshot    = "failed to encode household snapshot"
	ErrInvalidEnv        = "invalid environment value, using default"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Calendar initializing, please try again shortly."
	HTTPMsgMethodNotAll = "Method Not Allowed"
	HTTPMsgOK           = "ok"
)

// -----------------------------------------------------------------------------
// Fallbacks, Titles & Log Messages
// -----------------------------------------------------------------------------

const (
	FallbackMinorMilestone  = "%s leaves minor coverage"
	FallbackSeniorMilestone = "%s is now over 65"
	FallbackName            = "Household member"
	FallbackSaveFailed      = "There was a problem saving your information."
	FallbackLoadFailed      = "There was a problem loading your information."

	TitleStartupError = "Startup Error"

	MsgPortBusy          = "Port %s is busy or unavailable."
	MsgAppStop           = "Application stopped gracefully"
	MsgCtxCancel         = "Context cancelled, shutting down UI"
	MsgAppStarting       = "Starting application"
	MsgServerListen      = "HTTP server listening"
	MsgServerStop        = "Shutting down HTTP server..."
	MsgCacheUpdated      = "Calendar cache updated"
	MsgLocaleSkip        = "Skipping non-locale file"
	MsgLocaleBadName     = "Skipping malformed locale filename"
	MsgLocaleLoaded      = "Locale loaded successfully"
	MsgTransMissing      = "Missing translation key"
	MsgLogWarning        = "Warning: %s at %s: %v\n"
	MsgSkippedCard       = "Skipping malformed vCard"
	MsgSkippedDate       = "Skipping contact without a full birth date"
	MsgImportDone        = "Household import finished"
	MsgImportFailed      = "Household import failed"
	MsgImportSkipSpouse  = "Skipping additional spouse from import"
	MsgCalendarBuilt     = "Milestone calendar generated"
	MsgMalformedKey      = "Malformed persisted value, falling back to default"
	MsgBackfilled        = "Backfilled stale family member record"
	MsgDemotedSpouse     = "Demoted extra spouse to dependent"
	MsgDroppedDuplicate  = "Dropped duplicate family member record"
	MsgHouseholdLoaded   = "Household loaded"
	MsgHouseholdSaved    = "Household saved"
	MsgMemberAdded       = "Family member added"
	MsgMemberRemoved     = "Family member removed"
	MsgMemberRecorded    = "Family member form recorded"
	MsgEditBegin         = "Section edit started"
	MsgEditCommit        = "Section committed"
	MsgEditRejected      = "Section commit rejected by validation"
	MsgEditCancel        = "Section edit cancelled"
	MsgEligibilityScan   = "Eligibility scan completed"
	MsgGateOverride      = "Eligibility block overridden by user"
	MsgSubmitStart       = "Submission started"
	MsgSubmitDone        = "Submission completed"
	MsgSubmitSuppressed  = "Duplicate submission suppressed"
	MsgPersistFailed     = "Persistence failed, keeping in-memory household"
	MsgFetchStart        = "Initiating vCard download"
	MsgFetchBadStatus    = "Server returned error status"
	MsgFetchDownloading  = "vCards downloading"
	MsgStorageBackend    = "Storage backend selected"
	MsgSettingsLoaded    = "Settings loaded from environment"
	MsgIntakeOpened      = "Opening intake window"
	MsgReviewOpened      = "Opening review window"
	MsgNavigationBlocked = "Forward navigation blocked"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyPort      = "port"
	LogKeyMode      = "mode"
	LogKeyCount     = "count"
	LogKeyMemberID  = "member_id"
	LogKeyOwner     = "owner"
	LogKeySection   = "section"
	LogKeyType      = "type"
	LogKeyComplete  = "complete"
	LogKeySize      = "household_size"
	LogKeyIssues    = "issues"
	LogKeyBlocking  = "blocking"
	LogKeyPolicy    = "policy"
	LogKeyFields    = "fields"
	LogKeyBackend   = "backend"
	LogKeyDuration  = "duration_ms"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeyRoute     = "route"
	LogKeyStats     = "stats"
	LogKeyTotal     = "total_cards"
	LogKeyImported  = "imported"
	LogKeyValue     = "value"
	LogKeyEvents    = "events"
	LogKeyConfirm   = "confirmation_id"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompUI        = "ui"
	CompUIIntake  = "ui_intake"
	CompUIReview  = "ui_review"
	CompEngine    = "engine"
	CompHousehold = "household"
	CompEdit      = "edit"
	CompGate      = "gate"
	CompSubmit    = "submit"
	CompImport    = "import"
	CompStore     = "store"
	CompServer    = "server"
	CompFetcher   = "fetcher"
	CompMain      = "main"
	CompI18n      = "i18n"
	CompConfig    = "config"
)

// -----------------------------------------------------------------------------
// Metrics
// -----------------------------------------------------------------------------

const (
	MetricsNamespace = "go_enroll"

	MetricOutcomeClear    = "clear"
	MetricOutcomeAdvisory = "advisory"
	MetricOutcomeBlocked  = "blocked"

	MetricOpLoad = "load"
	MetricOpSave = "save"
)
