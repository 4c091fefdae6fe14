package taxexport

// deductibleKeywords are lowercase substrings that mark an invoice as a
// likely work-related expense for an employed software developer in Germany.
// Matching is case-insensitive substring search over the signal string.
var deductibleKeywords = []string{
	// Hardware / peripherals
	"pc",
	"laptop",
	"notebook",
	"computer",
	"monitor",
	"display",
	"grafik",
	"graphics",
	"mainboard",
	"motherboard",
	"ram",
	"arbeitsspeicher",
	"ssd",
	"festplatte",
	"hard drive",
	"tastatur",
	"keyboard",
	"maus",
	"mouse",
	"headset",
	"webcam",
	"mikrofon",
	"microphone",
	"drucker",
	"printer",
	"scanner",
	"usb hub",
	"docking",
	"dockingstation",
	"kvm",
	"netzteil",
	"power supply",
	"ups",
	"netzwerk",
	"router",
	"switch",
	"netzwerkkabel",
	// Software & cloud services
	"software",
	"license",
	"licence",
	"lizenz",
	"subscription",
	"abonnement",
	"developer tool",
	"entwicklerwerkzeug",
	"ide",
	"editor",
	"plugin",
	"extension",
	"github",
	"gitlab",
	"bitbucket",
	"jira",
	"confluence",
	"slack",
	"figma",
	"jetbrains",
	"visual studio",
	"vscode",
	"xcode",
	"aws",
	"azure",
	"gcp",
	"google cloud",
	"cloud",
	"hosting",
	"server",
	"domain",
	"ssl",
	"vpn",
	// Education & training
	"online course",
	"onlinekurs",
	"kurs",
	"weiterbildung",
	"fortbildung",
	"schulung",
	"training",
	"seminar",
	"workshop",
	"certification",
	"zertifizierung",
	"book",
	"buch",
	"fachbuch",
	"ebook",
	"tutorial",
	"udemy",
	"coursera",
	"pluralsight",
	"linkedin learning",
	"o'reilly",
	"oreilly",
	"manning",
	"packt",
	"apress",
	// Home-office furniture & equipment
	"desk",
	"schreibtisch",
	"office chair",
	"bürostuhl",
	"buerostuhl",
	"ergonomisch",
	"ergonomic",
	"monitor arm",
	"monitorarm",
	"tischhalterung",
	"stehpult",
	"standing desk",
	"höhenverstellbar",
	"regal",
	"shelf",
	"aktenschrank",
	"filing cabinet",
	"schreibtischlampe",
	"desk lamp",
	"beleuchtung",
	"lighting",
}
