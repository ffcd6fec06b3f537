package overnight

import "github.com/leon-madara/resona-core/internal/records"

// themeKey is the lookup key for deterministic theme selection.
type themeKey struct {
	risk       records.RiskLevel
	trajectory records.Trajectory
	language   records.Language
}

// themeTable is the deterministic (risk_level, trajectory, primary_language)
// -> theme lookup from §4.5 stage 3. Entries absent from the table fall
// through selectTheme's fallback ladder rather than requiring exhaustive
// coverage of every combination.
var themeTable = map[themeKey]records.Theme{
	{records.RiskHigh, records.TrajectoryDeclining, records.LanguageSwahili}: records.ThemeDepression,
	{records.RiskHigh, records.TrajectoryVolatile, records.LanguageSwahili}:  records.ThemeAnxiety,
	{records.RiskHigh, records.TrajectoryDeclining, records.LanguageEnglish}: records.ThemeDepression,
	{records.RiskHigh, records.TrajectoryVolatile, records.LanguageEnglish}:  records.ThemeAnxiety,
	{records.RiskMediumHigh, records.TrajectoryDeclining, records.LanguageSwahili}: records.ThemeAnxiety,
	{records.RiskMedium, records.TrajectoryVolatile, records.LanguageSwahili}:       records.ThemeAnxiety,
	{records.RiskLow, records.TrajectoryImproving, records.LanguageSwahili}:         records.ThemeEastAfrican,
	{records.RiskLow, records.TrajectoryStable, records.LanguageSwahili}:            records.ThemeEastAfrican,
	{records.RiskMedium, records.TrajectoryStable, records.LanguageSwahili}:         records.ThemeEastAfrican,
	{records.RiskLow, records.TrajectoryImproving, records.LanguageEnglish}:         records.ThemeStable,
	{records.RiskLow, records.TrajectoryStable, records.LanguageEnglish}:            records.ThemeStable,
	{records.RiskMedium, records.TrajectoryStable, records.LanguageEnglish}:         records.ThemeStable,
}

// selectTheme implements §4.5 stage 3: crisis is forced by critical risk or
// any critical finding in the last 24h; otherwise an exact table lookup,
// falling back first to a language-agnostic match then to risk-only bands.
func selectTheme(sig signalSet) records.Theme {
	level := riskLevel(sig)
	if level == records.RiskCritical || sig.criticalFindingLast24h {
		return records.ThemeCrisis
	}

	trajectory := classifyTrajectory(sig)
	lang := normalizeThemeLanguage(sig.primaryLanguage)

	if theme, ok := themeTable[themeKey{level, trajectory, lang}]; ok {
		return theme
	}
	if theme, ok := themeTable[themeKey{level, trajectory, records.LanguageEnglish}]; ok {
		return theme
	}

	switch {
	case level == records.RiskHigh || level == records.RiskMediumHigh:
		return records.ThemeAnxiety
	case trajectory == records.TrajectoryImproving:
		return records.ThemeStable
	default:
		return records.ThemeNeutral
	}
}

func normalizeThemeLanguage(lang records.Language) records.Language {
	if lang == records.LanguageMixed {
		return records.LanguageSwahili
	}
	if lang == "" || lang == records.LanguageAuto {
		return records.LanguageEnglish
	}
	return lang
}
