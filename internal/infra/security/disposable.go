package security

import "strings"

// disposableDomains is the deny list of known throwaway-mail providers
// consulted at registration time. Matching is by domain suffix so subdomains
// of listed providers are rejected too.
var disposableDomains = []string{
	"0-mail.com",
	"10minutemail.com",
	"10minutemail.net",
	"10minutesmail.com",
	"20minutemail.com",
	"33mail.com",
	"3d-painting.com",
	"anonbox.net",
	"anonymbox.com",
	"antichef.net",
	"bccto.me",
	"binkmail.com",
	"bobmail.info",
	"bugmenot.com",
	"burnermail.io",
	"byom.de",
	"chammy.info",
	"cool.fr.nf",
	"courriel.fr.nf",
	"crazymailing.com",
	"cuvox.de",
	"dayrep.com",
	"deadaddress.com",
	"despam.it",
	"discard.email",
	"discardmail.com",
	"disposableinbox.com",
	"dispostable.com",
	"dodgeit.com",
	"dontreg.com",
	"dropmail.me",
	"dump-email.info",
	"e4ward.com",
	"easytrashmail.com",
	"emailondeck.com",
	"emailsensei.com",
	"emailtemporanea.net",
	"emltmp.com",
	"fakeinbox.com",
	"fakemailgenerator.com",
	"fleckens.hu",
	"getairmail.com",
	"getnada.com",
	"gettempmail.com",
	"guerrillamail.biz",
	"guerrillamail.com",
	"guerrillamail.de",
	"guerrillamail.info",
	"guerrillamail.net",
	"guerrillamail.org",
	"guerrillamailblock.com",
	"haltospam.com",
	"harakirimail.com",
	"incognitomail.com",
	"inboxalias.com",
	"jetable.fr.nf",
	"jetable.org",
	"jourrapide.com",
	"kasmail.com",
	"killmail.com",
	"klzlk.com",
	"kurzepost.de",
	"lifebyfood.com",
	"lroid.com",
	"maildrop.cc",
	"maildx.com",
	"mailexpire.com",
	"mailinator.com",
	"mailinator.net",
	"mailnesia.com",
	"mailnull.com",
	"mailsac.com",
	"mailtemp.info",
	"mintemail.com",
	"mohmal.com",
	"mvrht.com",
	"mytrashmail.com",
	"nobulk.com",
	"noclickemail.com",
	"nospam.ze.tc",
	"nowmymail.com",
	"objectmail.com",
	"obobbo.com",
	"owlpic.com",
	"proxymail.eu",
	"rcpt.at",
	"rhyta.com",
	"rtrtr.com",
	"sharklasers.com",
	"shieldemail.com",
	"sogetthis.com",
	"spam4.me",
	"spamavert.com",
	"spambog.com",
	"spambox.us",
	"spamex.com",
	"spamgourmet.com",
	"spamhole.com",
	"superrito.com",
	"teleworm.us",
	"temp-mail.org",
	"tempail.com",
	"tempemail.net",
	"tempinbox.com",
	"tempmail.de",
	"tempmailer.com",
	"tempr.email",
	"throwawaymail.com",
	"tmail.ws",
	"tmailinator.com",
	"trash-mail.com",
	"trashmail.at",
	"trashmail.com",
	"trashmail.me",
	"trashmail.net",
	"wegwerfmail.de",
	"wegwerfmail.net",
	"yopmail.com",
	"yopmail.fr",
	"yopmail.net",
	"zoemail.net",
}

// IsDisposableEmail reports whether the address belongs to a known
// throwaway-mail provider.
func IsDisposableEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}

	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	for _, denied := range disposableDomains {
		if domain == denied || strings.HasSuffix(domain, "."+denied) {
			return true
		}
	}

	return false
}
