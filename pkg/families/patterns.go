package families

// Built-in detection patterns per family.
//
// Weights are score contributions in [0,1]; a single 0.9 pattern is enough to
// push a family past most screening thresholds, while 0.3-0.5 patterns need
// corroboration. Thresholds themselves live in the policy engine, not here.

func (r *Registry) registerPhishingURLPatterns() {
	f := PhishingURL

	r.register("ip_literal_url",
		`https?://(?:\d{1,3}\.){3}\d{1,3}(?::\d+)?(?:/|\b)`,
		f, 0.85, "URL addressing a raw IPv4 address instead of a hostname")

	r.register("punycode_host",
		`https?://[^/\s]*xn--[^/\s]+`,
		f, 0.80, "Punycode hostname, common in homoglyph lookalike domains")

	r.register("credential_path",
		`(?i)https?://[^\s]+/(?:login|signin|verify|secure|account|update|confirm)[^\s]*`,
		f, 0.55, "Credential-harvesting style URL path")

	r.register("url_shortener",
		`(?i)https?://(?:bit\.ly|tinyurl\.com|goo\.gl|t\.co|is\.gd|cutt\.ly|rb\.gy)/`,
		f, 0.45, "Link shortener hiding the real destination")

	r.register("brand_lookalike",
		`(?i)(?:paypa1|amaz0n|app1e|g00gle|micros0ft|netf1ix|faceb00k)`,
		f, 0.90, "Digit-substitution lookalike of a major brand")

	r.register("verify_account_urgency",
		`(?i)(?:verify|confirm|re-?activate)\s+your\s+(?:account|identity|password|payment)`,
		f, 0.60, "Account verification lure")

	r.register("suspended_account",
		`(?i)(?:account|access)\s+(?:has\s+been\s+|will\s+be\s+)?(?:suspended|locked|limited|disabled)`,
		f, 0.60, "Account suspension scare")

	r.register("click_here_urgent",
		`(?i)click\s+(?:here|the\s+link|below)\s+(?:immediately|now|within|before)`,
		f, 0.55, "Urgent click-through demand")
}

func (r *Registry) registerTransactionAnomalyPatterns() {
	f := TransactionAnomaly

	r.register("irs_impersonation",
		`(?i)(?:irs|internal\s+revenue|tax\s+(?:office|authority|agency))\s*(?:notice|warning|final|alert)?`,
		f, 0.80, "Tax-authority impersonation")

	r.register("pay_or_arrest",
		`(?i)(?:pay|payment|settle)[^.!?]{0,60}(?:arrest(?:ed)?|prosecut|lawsuit|legal\s+action|warrant)`,
		f, 0.95, "Payment demand backed by arrest or legal threat")

	r.register("arrest_threat",
		`(?i)(?:be\s+arrested|face\s+arrest|warrant\s+(?:for|issued)|police\s+will\s+be)`,
		f, 0.85, "Arrest threat tied to a payment")

	r.register("gift_card_payment",
		`(?i)(?:pay|payment|settle)[^.!?]{0,60}(?:gift\s*cards?|itunes|google\s+play\s+cards?|steam\s+cards?)`,
		f, 0.95, "Gift-card payment demand, a near-certain scam marker")

	r.register("wire_transfer_urgency",
		`(?i)(?:wire|transfer|send)[^.!?]{0,40}(?:money|funds|\$[\d,]+)[^.!?]{0,40}(?:immediately|urgently|today|right\s+now)`,
		f, 0.85, "Urgent wire-transfer demand")

	r.register("pay_immediately",
		`(?i)pay\s+(?:immediately|now|within\s+\d+\s+(?:hours?|minutes?))`,
		f, 0.70, "Immediate payment demand")

	r.register("overdue_final_notice",
		`(?i)(?:final|last)\s+(?:notice|warning)[^.!?]{0,60}(?:payment|balance|debt|owe)`,
		f, 0.65, "Fabricated overdue-balance pressure")

	r.register("crypto_payment_demand",
		`(?i)(?:pay|send|transfer)[^.!?]{0,40}(?:bitcoin|btc|ethereum|crypto(?:currency)?)`,
		f, 0.75, "Cryptocurrency payment demand")

	r.register("refund_overpayment",
		`(?i)(?:accidentally|mistakenly)\s+(?:sent|paid|transferred)[^.!?]{0,60}(?:refund|send\s+back|return)`,
		f, 0.70, "Overpayment refund scam")
}

func (r *Registry) registerSocialEngineeringPatterns() {
	f := SocialEngineering

	r.register("authority_urgency",
		`(?i)(?:urgent|immediately|right\s+away)[^.!?]{0,60}(?:your\s+)?(?:boss|manager|ceo|director|supervisor)`,
		f, 0.75, "Urgency attributed to an authority figure")

	r.register("boss_payment_request",
		`(?i)(?:boss|manager|ceo|director)[^.!?]{0,80}(?:transfer|wire|buy|purchase|send)[^.!?]{0,40}(?:funds|money|cards?)`,
		f, 0.90, "Executive impersonation payment request")

	r.register("credential_request",
		`(?i)(?:send|share|confirm|tell)\s+(?:me\s+)?your\s+(?:password|pin|passcode|login|credentials)`,
		f, 0.95, "Direct credential request")

	r.register("otp_request",
		`(?i)(?:read|send|share|tell)[^.!?]{0,30}(?:verification|security|one[- ]time)\s+code`,
		f, 0.90, "One-time-passcode interception attempt")

	r.register("tech_support_remote",
		`(?i)(?:remote\s+access|install\s+(?:teamviewer|anydesk)|your\s+computer\s+(?:is|has\s+been)\s+(?:infected|compromised|hacked))`,
		f, 0.85, "Fake tech-support remote-access lure")

	r.register("secrecy_demand",
		`(?i)(?:don'?t|do\s+not)\s+(?:tell|inform|mention\s+this\s+to)\s+(?:anyone|anybody|your)`,
		f, 0.70, "Secrecy demand isolating the target")

	r.register("grandchild_emergency",
		`(?i)(?:grandm[ao]|grandp[ao]|it'?s\s+your\s+grandson|it'?s\s+your\s+granddaughter)[^.!?]{0,80}(?:trouble|jail|accident|hospital|bail)`,
		f, 0.90, "Family-emergency impersonation")
}

func (r *Registry) registerInvestmentScamPatterns() {
	f := InvestmentScam

	r.register("guaranteed_returns",
		`(?i)guaranteed\s+(?:returns?|profits?|income|gains?)`,
		f, 0.85, "Guaranteed-return promise")

	r.register("double_your_money",
		`(?i)(?:double|triple|10x|100x)\s+your\s+(?:money|investment|crypto|savings)`,
		f, 0.90, "Multiplication-of-funds promise")

	r.register("risk_free_investment",
		`(?i)(?:risk[- ]free|no[- ]risk|zero[- ]risk)\s+(?:investment|opportunity|trading)`,
		f, 0.80, "Risk-free investment claim")

	r.register("exclusive_opportunity",
		`(?i)(?:exclusive|limited|secret)\s+(?:investment\s+)?opportunity[^.!?]{0,40}(?:act\s+now|today\s+only|spots?\s+left|closing)`,
		f, 0.75, "Scarcity-pressured investment pitch")

	r.register("crypto_giveaway",
		`(?i)send[^.!?]{0,30}(?:btc|eth|bitcoin|ethereum)[^.!?]{0,40}(?:receive|get\s+back|double)`,
		f, 0.95, "Send-to-receive crypto giveaway")

	r.register("insider_tip",
		`(?i)(?:insider|secret)\s+(?:tip|information|knowledge)[^.!?]{0,40}(?:stock|coin|token|market)`,
		f, 0.70, "Insider-trading style lure")
}

func (r *Registry) registerGroomingPatterns() {
	f := Grooming

	r.register("mature_for_age",
		`(?i)(?:so\s+|seem\s+|very\s+|really\s+)?mature\s+for\s+your\s+age`,
		f, 0.90, "Flattery minimizing the age gap")

	r.register("chat_privately",
		`(?i)(?:chat|talk|message|speak)[^.!?]{0,30}(?:privately|in\s+private|somewhere\s+(?:else|private)|just\s+(?:us|the\s+two))`,
		f, 0.75, "Move-to-private-channel request")

	r.register("keep_secret_from_parents",
		`(?i)(?:don'?t|do\s+not|never)\s+tell\s+your\s+(?:parents|mom|mum|dad|family|teacher)`,
		f, 0.95, "Secrecy demand aimed at guardians")

	r.register("our_little_secret",
		`(?i)our\s+(?:little\s+)?secret`,
		f, 0.90, "Secret-keeping framing")

	r.register("photo_request",
		`(?i)send\s+(?:me\s+)?(?:a\s+)?(?:photo|picture|pic|selfie)\s+of\s+(?:you|yourself)`,
		f, 0.85, "Photo solicitation")

	r.register("age_probe",
		`(?i)how\s+old\s+are\s+you[^.!?]{0,40}(?:alone|parents|home\s+alone|by\s+yourself)`,
		f, 0.85, "Age probe combined with supervision probe")

	r.register("meet_alone",
		`(?i)(?:meet|come\s+over|visit)[^.!?]{0,40}(?:alone|by\s+yourself|without\s+(?:your\s+)?parents)`,
		f, 0.95, "Unsupervised meeting request")

	r.register("gift_offer_minor",
		`(?i)(?:buy|get|send)\s+you\s+(?:anything|whatever|gifts?|presents?|v-?bucks|robux|skins)`,
		f, 0.65, "Gift offer used to build obligation")
}

func (r *Registry) registerCrisisSignalPatterns() {
	f := CrisisSignal

	r.register("suicidal_ideation",
		`(?i)(?:kill\s+myself|end\s+(?:it\s+all|my\s+life)|suicide|don'?t\s+want\s+to\s+(?:live|be\s+here)\s+anymore)`,
		f, 0.95, "Direct self-harm ideation")

	r.register("no_reason_to_live",
		`(?i)(?:no\s+(?:reason|point)\s+(?:to|in)\s+(?:liv|go|keep)|better\s+off\s+without\s+me|nothing\s+to\s+live\s+for)`,
		f, 0.90, "Hopelessness framing")

	r.register("self_harm",
		`(?i)(?:hurt(?:ing)?|cut(?:ting)?|harm(?:ing)?)\s+myself`,
		f, 0.90, "Self-harm disclosure")

	r.register("goodbye_message",
		`(?i)(?:this\s+is\s+goodbye|you\s+won'?t\s+(?:see|hear\s+from)\s+me\s+again|by\s+the\s+time\s+you\s+read\s+this)`,
		f, 0.85, "Farewell-note phrasing")
}

func (r *Registry) registerViolenceIndicatorPatterns() {
	f := ViolenceIndicator

	r.register("direct_threat",
		`(?i)(?:i\s+(?:will|am\s+going\s+to|'?m\s+gonna)\s+(?:hurt|kill|shoot|stab|beat)\s+(?:you|him|her|them))`,
		f, 0.95, "Direct threat of violence")

	r.register("weapon_to_location",
		`(?i)(?:bring|take|carry)[^.!?]{0,30}(?:gun|knife|weapon)[^.!?]{0,40}(?:school|work|church|office)`,
		f, 0.95, "Weapon brought to a gathering place")

	r.register("watch_what_happens",
		`(?i)(?:you'?ll|you\s+will)\s+(?:regret|pay|be\s+sorry)[^.!?]{0,40}(?:tomorrow|soon|when\s+i)`,
		f, 0.75, "Deferred retaliation threat")

	r.register("location_stalking",
		`(?i)i\s+know\s+where\s+you\s+(?:live|work|go\s+to\s+school)`,
		f, 0.90, "Location knowledge used as intimidation")
}
