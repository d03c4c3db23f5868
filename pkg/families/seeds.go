package families

// SeedExemplars are canonical examples per family used to build the deep
// tier's vector collection. Each exemplar is embedded once at startup; deep
// classification compares an input against them by cosine similarity.
//
// These are deliberately phrased the way real threats are phrased, not as
// keyword lists, so paraphrased attacks still land near them in embedding
// space.
func SeedExemplars() map[Family][]string {
	return map[Family][]string{
		PhishingURL: {
			"Your account has been suspended, verify your identity at the link below within 24 hours",
			"We detected unusual sign-in activity, confirm your password here to keep your account",
			"Your package could not be delivered, update your payment details at this secure link",
		},
		TransactionAnomaly: {
			"This is your final notice from the IRS, pay immediately or a warrant will be issued for your arrest",
			"You owe an outstanding balance, settle it today with gift cards to avoid prosecution",
			"Wire the funds right now, the account will be frozen by end of day",
		},
		SocialEngineering: {
			"This is urgent from your manager, I need you to buy gift cards and send me the codes",
			"I'm from IT support, your computer is infected, give me remote access to fix it",
			"Read me the verification code that was just sent to your phone",
		},
		InvestmentScam: {
			"Guaranteed returns of 30 percent per month, risk free, limited spots remaining",
			"Send 0.1 BTC to this address and receive double back, promotion ends tonight",
			"I have insider information on a coin that will 100x this week, act now",
		},
		Grooming: {
			"You seem so mature for your age, let's chat somewhere private just the two of us",
			"Don't tell your parents about our conversations, this is our little secret",
			"Send me a photo of yourself, I'll buy you anything you want in the game",
		},
		CrisisSignal: {
			"I can't do this anymore, I just want to end it all",
			"Everyone would be better off without me, there's no point in going on",
			"By the time you read this I'll be gone, this is goodbye",
		},
		ViolenceIndicator: {
			"I'm going to hurt you, I know where you live",
			"Tomorrow I'm bringing a weapon to school and everyone will be sorry",
			"You'll regret what you did when I find you",
		},
	}
}
