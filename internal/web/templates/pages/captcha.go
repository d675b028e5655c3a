package pages

import "github.com/mcoot/ari-accounts/internal/web/templates/layout"

// captchaField is filled in by static/captcha.js from GET /auth/captcha
func captchaField(h *layout.HTML) {
	h.Raw(`<fieldset class="captcha" data-captcha-src="/auth/captcha"><legend>captcha</legend>`)
	h.Raw(`<img class="captcha-image" alt="captcha image">`)
	h.Raw(`<audio class="captcha-audio" controls></audio>`)
	h.Raw(`<button type="button" class="captcha-refresh">new captcha</button>`)
	h.Raw(`<label>answer <input type="text" name="captcha" inputmode="numeric" autocomplete="off" maxlength="6" required></label>`)
	h.Raw(`<noscript>javascript is needed to load the captcha</noscript>`)
	h.Raw(`</fieldset><script src="/static/captcha.js" defer></script>`)
}
