// SPDX-License-Identifier: MIT

// Package fuzzy turns teams and event names into match patterns and
// scores them against stream titles. It is pure string work: no I/O, no
// state, deterministic for a given vocabulary.
package fuzzy

// Abbreviations maps a lowercased full team name onto broadcast short
// forms that providers do not carry. Stream titles use these constantly
// ("Man Utd v Liverpool", "LA Lakers @ Boston").
var Abbreviations = map[string][]string{
	"new york giants":        {"ny giants"},
	"new york jets":          {"ny jets"},
	"new england patriots":   {"ne patriots", "pats"},
	"green bay packers":      {"gb packers"},
	"san francisco 49ers":    {"sf 49ers", "niners"},
	"tampa bay buccaneers":   {"tb buccaneers", "bucs"},
	"kansas city chiefs":     {"kc chiefs"},
	"jacksonville jaguars":   {"jax jaguars", "jags"},
	"los angeles lakers":     {"la lakers"},
	"los angeles clippers":   {"la clippers"},
	"los angeles rams":       {"la rams"},
	"los angeles chargers":   {"la chargers"},
	"los angeles dodgers":    {"la dodgers"},
	"golden state warriors":  {"gs warriors", "gsw"},
	"oklahoma city thunder":  {"okc thunder", "okc"},
	"vegas golden knights":   {"vgk"},
	"manchester united":      {"man utd", "man united"},
	"manchester city":        {"man city"},
	"tottenham hotspur":      {"spurs", "tottenham"},
	"wolverhampton wanderers": {"wolves"},
	"brighton & hove albion": {"brighton"},
	"west ham united":        {"west ham"},
	"newcastle united":       {"newcastle"},
	"nottingham forest":      {"forest"},
	"inter miami cf":         {"inter miami"},
	"atlanta united fc":      {"atlanta united"},
	"mumbai indians":         {"mi"},
	"chennai super kings":    {"csk"},
	"royal challengers bengaluru": {"rcb"},
	"kolkata knight riders":  {"kkr"},
}

// MascotWords are trailing tokens that clearly identify a North American
// franchise on their own, so a title that only carries the city or only
// the mascot still matches. Tokens outside this set (United, City, Real)
// are never split off.
var MascotWords = map[string]bool{
	// NFL
	"cardinals": true, "falcons": true, "ravens": true, "bills": true,
	"panthers": true, "bears": true, "bengals": true, "browns": true,
	"cowboys": true, "broncos": true, "lions": true, "packers": true,
	"texans": true, "colts": true, "jaguars": true, "chiefs": true,
	"raiders": true, "chargers": true, "rams": true, "dolphins": true,
	"vikings": true, "patriots": true, "saints": true, "giants": true,
	"jets": true, "eagles": true, "steelers": true, "49ers": true,
	"seahawks": true, "buccaneers": true, "titans": true, "commanders": true,
	// NBA
	"hawks": true, "celtics": true, "nets": true, "hornets": true,
	"bulls": true, "cavaliers": true, "mavericks": true, "nuggets": true,
	"pistons": true, "warriors": true, "rockets": true, "pacers": true,
	"clippers": true, "lakers": true, "grizzlies": true, "heat": true,
	"bucks": true, "timberwolves": true, "pelicans": true, "knicks": true,
	"thunder": true, "magic": true, "suns": true, "blazers": true,
	"kings": true, "spurs": true, "raptors": true, "jazz": true,
	"wizards": true, "sixers": true,
	// MLB
	"yankees": true, "mets": true, "phillies": true, "braves": true,
	"marlins": true, "nationals": true, "cubs": true, "reds": true,
	"brewers": true, "pirates": true, "dodgers": true, "padres": true,
	"rockies": true, "diamondbacks": true, "astros": true, "rangers": true,
	"angels": true, "athletics": true, "mariners": true, "orioles": true,
	"royals": true, "twins": true, "tigers": true, "guardians": true,
	"sox": true,
	// NHL
	"bruins": true, "sabres": true, "wings": true, "lightning": true,
	"canadiens": true, "senators": true, "devils": true, "islanders": true,
	"flyers": true, "penguins": true, "capitals": true, "hurricanes": true,
	"blackhawks": true, "avalanche": true, "jackets": true, "stars": true,
	"wild": true, "predators": true, "blues": true, "flames": true,
	"oilers": true, "canucks": true, "knights": true, "sharks": true,
	"kraken": true, "ducks": true, "leafs": true,
}
