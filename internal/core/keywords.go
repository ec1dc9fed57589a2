package core

// Keyword tables for the signal detector. The lists are data, not logic:
// deployments covering other languages swap these without touching the
// detection algorithm. The defaults cover English and Traditional Chinese.

// actionKeywords mark messages that require the recipient to do something.
// Only the single best (first) match is emitted.
var actionKeywords = []string{
	"approval needed",
	"approval required",
	"action required",
	"please approve",
	"please review",
	"please confirm",
	"signature required",
	"response needed",
	"簽核",
	"請核准",
	"請審核",
	"請回覆",
	"待處理",
	"需要您",
}

// urgencyKeywords grade how time-sensitive a message is. Every match is
// emitted as its own signal.
var urgencyKeywords = map[UrgencyLevel][]string{
	UrgencyHigh: {
		"urgent",
		"asap",
		"immediately",
		"critical",
		"emergency",
		"today",
		"緊急",
		"急件",
		"立即",
		"馬上",
	},
	UrgencyMedium: {
		"deadline",
		"by tomorrow",
		"this week",
		"reminder",
		"follow up",
		"期限",
		"提醒",
		"本週",
		"盡快",
	},
	UrgencyLow: {
		"when you have time",
		"no rush",
		"fyi",
		"whenever",
		"有空時",
		"不急",
		"參考",
	},
}

// opportunityKeywords mark RFQ-adjacent business openings. They never score
// on their own; the seed manager uses them to type seeds.
var opportunityKeywords = []string{
	"quotation",
	"quote",
	"rfq",
	"inquiry",
	"proposal",
	"partnership",
	"cooperation",
	"報價",
	"詢價",
	"合作",
	"提案",
}

// newsletterKeywords identify bulk mail when the sender domain is not on the
// configured newsletter domain list.
var newsletterKeywords = []string{
	"newsletter",
	"unsubscribe",
	"view in browser",
	"weekly digest",
	"電子報",
	"訂閱",
	"取消訂閱",
}

// seasonalKeywords identify holiday greeting blasts.
var seasonalKeywords = []string{
	"happy new year",
	"merry christmas",
	"season's greetings",
	"happy holidays",
	"新年快樂",
	"恭喜發財",
	"聖誕快樂",
	"佳節愉快",
}

// autoNotificationKeywords identify machine-generated notices.
var autoNotificationKeywords = []string{
	"do not reply",
	"automated message",
	"automatic notification",
	"delivery status",
	"系統通知",
	"自動通知",
	"請勿回覆",
}

// marketingKeywords identify promotional mail.
var marketingKeywords = []string{
	"special offer",
	"limited time",
	"discount",
	"promotion",
	"% off",
	"sale ends",
	"特別優惠",
	"限時",
	"折扣",
	"促銷",
}
