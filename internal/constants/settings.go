package constants

const (
	// Setting keys. Values are stored as JSON.
	SettingThemeMode          = "theme_mode"
	SettingModuleVisible      = "module_visible."
	SettingOrder              = "order."
	SettingGoal               = "goal."
	SettingCompactView        = "compact_view"
	SettingSyncFolderHandle   = "sync_folder_handle"
	SettingPracticePeriodMode = "practice_period_mode"
	SettingPracticeStartDate  = "practice_start_date"

	// Theme modes
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"

	// Ordering groups
	OrderHabits    = "habits"
	OrderCounters  = "counters"
	OrderDashboard = "dashboard"
	OrderSections  = "sections"

	// Practice period modes
	PeriodModeCalendar = "calendar"
	PeriodModePersonal = "personal"

	// Default settings values
	DefaultThemeMode     = ThemeSystem
	DefaultModuleVisible = true
	DefaultCompactView   = false
	DefaultPeriodMode    = PeriodModeCalendar
	DefaultTimezone      = "Local"
)

// Modules lists the trackable modules whose visibility can be toggled.
var Modules = []string{"checkins", "counters", "fasting", "inventory", "stoic"}

// OrderGroups lists the valid ordering array names.
var OrderGroups = []string{OrderHabits, OrderCounters, OrderDashboard, OrderSections}
