package scraper

import "fmt"

// Page scripts are function expressions invoked through Page.Call with JSON
// arguments. Shared helpers are prepended to each body.
const jsHelpers = `
	const xpathAll = (xp) => {
		const snap = document.evaluate(xp, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		const out = [];
		for (let i = 0; i < snap.snapshotLength; i++) out.push(snap.snapshotItem(i));
		return out;
	};
	const shown = (el) => !!(el && (el.offsetWidth || el.offsetHeight || el.getClientRects().length));
`

// consentJS accepts the cookie wall served on consent.google.com.
var consentJS = `() => {` + jsHelpers + `
	const btn = xpathAll(` + jsString(ConsentButton) + `)[0];
	if (!btn) return { found: false, clickable: false, clicked: false };
	btn.click();
	return { found: true, clickable: true, clicked: true };
}`

// openDateInputJS clicks the first element matching the given selector.
var openDateInputJS = `(selector) => {` + jsHelpers + `
	const el = document.querySelector(selector);
	if (!el) return { found: false, clickable: false, clicked: false };
	if (!shown(el) || el.disabled) return { found: true, clickable: false, clicked: false };
	el.scrollIntoView({ block: 'center' });
	el.click();
	return { found: true, clickable: true, clicked: true };
}`

// dialogOpenJS reports whether the date picker dialog is visible.
var dialogOpenJS = `() => {` + jsHelpers + `
	return Array.from(document.querySelectorAll(` + jsString(DialogSelector) + `)).some(shown);
}`

// monthGroupsJS lists rendered month blocks with their header and first day stamp.
var monthGroupsJS = `() => {` + jsHelpers + `
	return xpathAll(` + jsString(MonthGroupXPath) + `).map((g) => {
		const h = g.querySelector(` + jsString(MonthHeaderSelector) + `);
		const d = g.querySelector(` + jsString(DayStampSelector) + `);
		return {
			header: h ? h.textContent.trim() : '',
			first_iso: d ? (d.getAttribute('data-iso') || '') : '',
		};
	});
}`

// scrollGroupJS scrolls the index-th month block into view.
var scrollGroupJS = `(index, block) => {` + jsHelpers + `
	const g = xpathAll(` + jsString(MonthGroupXPath) + `)[index];
	if (!g) return false;
	const h = g.querySelector(` + jsString(MonthHeaderSelector) + `) || g;
	h.scrollIntoView({ block: block });
	return true;
}`

// arrowJS clicks the first displayed prev/next arrow. Without force the
// click is refused when the arrow is disabled or covered by another element.
var arrowJS = `(label, force) => {` + jsHelpers + `
	const xp = ` + jsString(ArrowXPathF) + `.replace('%s', label);
	const btn = xpathAll(xp).find(shown);
	if (!btn) return { found: false, clickable: false, clicked: false };
	btn.scrollIntoView({ block: 'center' });
	if (!force) {
		const r = btn.getBoundingClientRect();
		const top = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
		const covered = top && top !== btn && !btn.contains(top);
		if (btn.disabled || btn.getAttribute('aria-disabled') === 'true' || covered) {
			return { found: true, clickable: false, clicked: false };
		}
	}
	btn.click();
	return { found: true, clickable: true, clicked: true };
}`

// cellsJS reports every grid cell whose date stamp starts with prefix.
var cellsJS = `(prefix) => {` + jsHelpers + `
	return xpathAll(` + jsString(GridCellXPath) + `)
		.filter((c) => (c.getAttribute('data-iso') || '').startsWith(prefix))
		.map((c) => {
			const day = c.querySelector(` + jsString(CellDaySelector) + `);
			const price = c.querySelector(` + jsString(CellPriceSelector) + `);
			return {
				iso: c.getAttribute('data-iso') || '',
				day: day ? day.textContent.trim() : '',
				price: price ? price.textContent.trim() : '',
				raw: c.innerText || '',
				visible: shown(c),
				hidden: c.getAttribute('aria-hidden') === 'true',
			};
		});
}`

// stealthJS runs before any page script on every new document.
const stealthJS = `
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'languages', { get: () => ['fr-FR', 'fr', 'en-US', 'en'] });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
	window.chrome = window.chrome || { runtime: {} };
	const originalQuery = window.navigator.permissions && window.navigator.permissions.query;
	if (originalQuery) {
		window.navigator.permissions.query = (p) => p && p.name === 'notifications'
			? Promise.resolve({ state: Notification.permission })
			: originalQuery(p);
	}
`

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	return fmt.Sprintf("%q", s)
}
