package concept

// defaultStopWords covers articles, conjunctions, common prepositions,
// pronouns and auxiliary verbs.
var defaultStopWords = []string{
	// articles
	"a", "an", "the",
	// conjunctions
	"and", "or", "but", "nor", "so", "yet", "if", "then", "than", "because",
	"while", "although", "though", "unless", "whether",
	// prepositions
	"about", "above", "across", "after", "against", "along", "among", "around",
	"at", "before", "behind", "below", "beneath", "beside", "between", "beyond",
	"by", "down", "during", "except", "for", "from", "in", "inside", "into",
	"near", "of", "off", "on", "onto", "out", "outside", "over", "past",
	"since", "through", "throughout", "to", "toward", "towards", "under",
	"until", "up", "upon", "with", "within", "without",
	// pronouns
	"i", "me", "my", "mine", "myself", "we", "us", "our", "ours", "ourselves",
	"you", "your", "yours", "yourself", "yourselves", "he", "him", "his",
	"himself", "she", "her", "hers", "herself", "it", "its", "itself", "they",
	"them", "their", "theirs", "themselves", "this", "that", "these", "those",
	"who", "whom", "whose", "which", "what",
	// auxiliaries
	"am", "is", "are", "was", "were", "be", "been", "being", "have", "has",
	"had", "having", "do", "does", "did", "will", "would", "shall", "should",
	"can", "could", "may", "might", "must",
	// misc
	"not", "no", "as", "also", "very", "too", "just",
}
