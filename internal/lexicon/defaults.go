package lexicon

// defaultFile is the built-in v1 wordlist set. Deployments that need
// different wording load a reviewed YAML file instead (LEXICON_PATH);
// changes here require the same review as any safety-affecting change.
var defaultFile = File{
	Version: "v1",

	CrisisPhrases: []string{
		"suicide",
		"kill myself",
		"end it all",
		"not worth living",
		"want to die",
		"going to die",
		"hurt myself",
		"self harm",
		"cut myself",
		"overdose",
		"jump off",
		"hang myself",
		"drown myself",
		"shoot myself",
		"better off dead",
		"final goodbye",
		"can't take it",
		"give up",
		"hopeless",
		"worthless",
		"burden",
		"help me",
		"emergency",
		"die",
		"death",
	},

	Overrides: map[string][]string{
		"happy": {
			"i am happy", "i'm happy", "im happy",
			"very happy", "so happy", "really happy",
			"feeling great", "i feel great", "feeling good", "i feel good",
			"excited", "so excited", "very excited",
			"awesome", "amazing", "wonderful",
			"feeling wonderful", "feeling amazing",
			"i'm great", "im great", "i am great",
			"feeling awesome", "feeling fantastic",
		},
		"anxious": {
			"i am anxious", "i'm anxious", "im anxious",
			"feeling anxious", "i feel anxious",
			"nervous", "so nervous", "very nervous",
			"worried", "so worried", "very worried",
			"panic", "panicking", "panicked",
			"so tense", "very tense", "feeling tense",
			"overwhelmed", "feeling overwhelmed",
			"stressed", "so stressed", "very stressed", "feeling stressed",
			"can't relax", "cannot relax", "cant relax",
		},
		"sad": {
			"i am sad", "i'm sad", "im sad",
			"feeling sad", "i feel sad",
			"depressed", "feeling depressed", "i feel depressed",
			"feeling low", "feeling down",
			"lonely", "feeling lonely",
			"feeling empty",
			"crying", "i'm crying", "im crying",
		},
		"angry": {
			"i am angry", "i'm angry", "im angry",
			"feeling angry", "i feel angry",
			"so mad", "very mad", "i'm mad", "im mad",
			"furious", "so furious",
			"irritated", "feeling irritated",
			"annoyed", "so annoyed",
			"frustrated", "feeling frustrated",
		},
		"fearful": {
			"i am afraid", "i'm afraid", "im afraid",
			"feeling afraid", "i feel afraid",
			"scared", "so scared", "very scared", "feeling scared",
			"terrified", "feeling terrified",
			"horrified", "feeling horrified",
		},
	},

	StressKeywords: []string{
		"stressed", "anxious", "worried", "overwhelmed", "panic",
		"nervous", "tired", "exhausted", "depressed", "hopeless", "lonely",
	},

	PositiveKeywords: []string{
		"happy", "grateful", "excited", "good", "confident", "proud",
	},
}
