package blocklist

import "context"

// defaultAdsDomains are common advertising domains used as a fallback before
// the first successful fetch.
var defaultAdsDomains = []string{
	"doubleclick.net",
	"googlesyndication.com",
	"googleadservices.com",
	"googletagmanager.com",
	"googletagservices.com",
	"adservice.google.com",
	"pagead2.googlesyndication.com",
	"tpc.googlesyndication.com",
	"ade.googlesyndication.com",
	"ad.doubleclick.net",
	"stats.g.doubleclick.net",
	"pubads.g.doubleclick.net",
	"securepubads.g.doubleclick.net",
	"ads.facebook.com",
	"pixel.facebook.com",
	"analytics.facebook.com",
	"adnxs.com",
	"advertising.com",
	"rubiconproject.com",
	"openx.net",
	"pubmatic.com",
	"criteo.com",
	"taboola.com",
	"outbrain.com",
	"amazon-adsystem.com",
	"moatads.com",
	"scorecardresearch.com",
	"quantserve.com",
	"serving-sys.com",
	"adsrvr.org",
	"bidswitch.net",
	"casalemedia.com",
	"contextweb.com",
	"demdex.net",
	"dotomi.com",
	"exelator.com",
	"everesttech.net",
	"eyeota.net",
	"krxd.net",
	"liadm.com",
	"mathtag.com",
	"mediamath.com",
	"mookie1.com",
	"nexac.com",
	"rlcdn.com",
	"rfihub.com",
	"sharethrough.com",
	"simpli.fi",
	"spotxchange.com",
	"springserve.com",
	"tapad.com",
	"tremorhub.com",
	"tribalfusion.com",
	"w55c.net",
	"yieldmo.com",
}

// defaultTrackingDomains are common analytics and tracking domains used as a
// fallback before the first successful fetch.
var defaultTrackingDomains = []string{
	"google-analytics.com",
	"analytics.google.com",
	"hotjar.com",
	"mixpanel.com",
	"segment.io",
	"segment.com",
	"amplitude.com",
	"heap.io",
	"heapanalytics.com",
	"fullstory.com",
	"mouseflow.com",
	"crazyegg.com",
	"luckyorange.com",
	"clicktale.net",
	"inspectlet.com",
	"logrocket.com",
	"smartlook.com",
	"clarity.ms",
	"newrelic.com",
	"nr-data.net",
	"bugsnag.com",
	"sentry.io",
	"rollbar.com",
}

// LoadDefaults loads the embedded default blocklist, so that the gateway is
// never defenseless before the first successful fetch.  It requires no
// network access.
func (m *Manager) LoadDefaults(ctx context.Context) {
	m.mu.Lock()
	for _, domain := range defaultAdsDomains {
		m.addLocked(domain, "ads")
	}
	for _, domain := range defaultTrackingDomains {
		m.addLocked(domain, "tracking")
	}

	flat := m.rebuildLocked()
	m.mu.Unlock()

	m.swapFlat(flat)

	m.logger.InfoContext(
		ctx,
		"loaded default blocklist",
		"count", len(defaultAdsDomains)+len(defaultTrackingDomains),
	)
}
