package types

// StrongVerbs is the closed set of imperative action verbs an accepted
// step's actions must begin with. Lowercase, single words or
// short phrases; matched case-insensitively after stripping bullet markers.
var StrongVerbs = map[string]bool{
	"configure": true, "create": true, "add": true, "set": true,
	"enable": true, "disable": true, "update": true, "modify": true,
	"deploy": true, "install": true, "implement": true, "run": true,
	"execute": true, "navigate": true, "open": true, "access": true,
	"select": true, "click": true, "enter": true, "choose": true,
	"verify": true, "test": true, "validate": true, "confirm": true,
	"check": true, "monitor": true, "define": true, "initialize": true,
	"generate": true, "build": true, "apply": true,
}

// WeakVerbs is the closed set of verbs that disqualify an action even if
// it otherwise resembles an imperative.
var WeakVerbs = map[string]bool{
	"learn": true, "understand": true, "know": true, "remember": true,
	"recall": true, "review": true, "read": true, "study": true,
	"examine": true, "consider": true, "ensure": true, "make sure": true,
	"try": true, "attempt": true,
}

// EmphasisTokens is the closed set of phrases the normalizer counts to
// derive Sentence.EmphasisScore.
var EmphasisTokens = []string{
	"important", "crucial", "key", "critical", "essential", "remember",
	"note that", "must", "required", "never", "always",
}

// TransitionPhrases is the closed set of phrases that mark
// Sentence.IsTransition.
var TransitionPhrases = []string{
	"let's move on", "next we'll", "next, we", "moving on", "now let's",
	"next topic", "alright, so", "so now",
}

// InterrogativeTokens is the closed set of sentence-leading tokens that
// mark Sentence.IsQuestion when the sentence does not already end in "?"
//.
var InterrogativeTokens = map[string]bool{
	"what": true, "how": true, "why": true, "when": true, "where": true,
	"who": true, "which": true, "can": true, "could": true, "would": true,
	"should": true, "do": true, "does": true, "is": true, "are": true,
}

// InstructorRoleAliases map a parsed "Name:"/"Role:" prefix to SpeakerInstructor.
var InstructorRoleAliases = map[string]bool{
	"instructor": true, "teacher": true, "presenter": true, "host": true,
}

// ParticipantRoleAliases map a parsed "Name:"/"Role:" prefix to SpeakerParticipant.
var ParticipantRoleAliases = map[string]bool{
	"participant": true, "student": true, "attendee": true, "q": true,
}
