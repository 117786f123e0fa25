package safety

// Rule pattern tables for the built-in detectors. Rule identifiers are
// "<category>" and are reported in Assessment.TriggeredRules prefixed
// with the detector name, e.g. "content_filter:violence".

var harmfulPatterns = map[string][]string{
	"violence": {
		`\b(kill|murder|assassinate|bomb|terrorist|attack)\b`,
		`\b(harm|hurt|injure|damage|destroy)\b`,
		`\b(weapon|gun|knife|explosive)\b`,
	},
	"hate_speech": {
		`\b(racist|sexist|homophobic|transphobic)\b`,
		`\b(discriminate|prejudice|bigot)\b`,
	},
	"illegal_activity": {
		`\b(illegal|crime|criminal|fraud|steal)\b`,
		`\b(hacking|phishing)\b`,
		`\b(exploit|manipulate|deceive)\b`,
	},
	"personal_information": {
		`\b(ssn|social security|credit card|password)\b`,
		`\b(private|confidential|secret)\b.*\b(data|information|record)\b`,
	},
}

var biasPatterns = map[string][]string{
	"gender_bias": {
		`\b(man|woman|male|female)\b.*\b(should|must|always|never)\b`,
		`\b(girls|boys)\b.*\b(can't|shouldn't|mustn't)\b`,
		`\b(feminine|masculine)\b.*\b(traits|characteristics)\b`,
	},
	"racial_bias": {
		`\b(race|ethnicity|skin color)\b.*\b(determines|causes|results in)\b`,
		`\b(cultural|background)\b.*\b(inferior|superior)\b`,
	},
	"age_bias": {
		`\b(young|old|elderly|teenager)\b.*\b(can't|shouldn't|mustn't)\b`,
		`\b(age|generation)\b.*\b(determines|limits|restricts)\b`,
	},
	"socioeconomic_bias": {
		`\b(poor|rich|wealthy|poverty)\b.*\b(deserves|earned|responsible)\b`,
		`\b(education|income)\b.*\b(determines|causes|results in)\b`,
	},
}

var ethicsPatterns = map[string][]string{
	"privacy": {
		`\b(personal data|private information)\b`,
		`\b(track|monitor|surveil)\b.*\b(without consent)\b`,
	},
	"manipulation": {
		`\b(manipulate|deceive|trick|mislead)\b`,
		`\b(psychological|emotional)\b.*\b(control|influence)\b`,
	},
	"discrimination": {
		`\b(discriminate|exclude)\b.*\b(based on|because of)\b`,
		`\b(treat differently)\b.*\b(race|gender|age|religion)\b`,
	},
}

var toxicWords = []string{
	"hate", "kill", "hurt", "harm", "attack", "destroy",
	"stupid", "idiot", "moron", "worthless", "useless",
}
