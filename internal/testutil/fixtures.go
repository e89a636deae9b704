package testutil

// LoginPage is the site home while signed out.
const LoginPage = `<!doctype html>
<html><body>
<main role="main" class="main-wrap">
  <form class="b-loginreg__form">
    <input type="email" name="email">
    <input type="password" name="password">
    <button type="submit" class="g-btn m-login">Log in</button>
  </form>
  <a data-testid="login-twitter" class="g-btn m-twitter">Sign in with Twitter</a>
  <a data-testid="login-google" class="g-btn m-google">Sign in with Google</a>
</main>
</body></html>`

// TwitterLoginPage is the first identity provider's consent form.
const TwitterLoginPage = `<!doctype html>
<html><body>
<div class="auth">
  <input id="username_or_email" name="session[username_or_email]">
  <input id="password" type="password" name="session[password]">
  <input id="allow" type="submit" value="Sign In">
</div>
</body></html>`

// GoogleLoginPage is the second identity provider's sign-in form, with both
// steps rendered at once.
const GoogleLoginPage = `<!doctype html>
<html><body>
<div class="signin">
  <input id="identifierId" type="email">
  <div id="identifierNext"><button>Next</button></div>
  <input type="password" name="Passwd">
  <div id="passwordNext"><button>Next</button></div>
</div>
</body></html>`

// CaptchaPage is a provider form interrupted by a bot challenge.
const CaptchaPage = `<!doctype html>
<html><body>
<div class="signin">
  <iframe title="reCAPTCHA challenge"></iframe>
  <span class="recaptcha-checkbox"></span>
</div>
</body></html>`

// HomePage is the site home while signed in, with the post composer and
// every composer dialog rendered. Dialogs are visible so tests need no
// click hooks to open them.
const HomePage = `<!doctype html>
<html><body>
<header class="l-header"><div data-testid="user-menu" class="l-header__menu">me</div></header>
<main role="main" class="main-wrap">
  <div class="b-make-post">
    <textarea id="new_post_text_input" name="text"></textarea>
    <div class="b-make-post__actions" data-testid="composer-actions">
      <button data-testid="more-options">More</button>
      <button data-testid="price-open">Price</button>
      <button data-testid="tweet-toggle">Tweet</button>
      <input type="file" name="files" multiple>
    </div>

    <div data-testid="options-panel">
      <button data-testid="expiration-open">Expiration</button>
      <button data-testid="schedule-open">Schedule</button>
      <button data-testid="poll-open">Poll</button>
    </div>

    <div data-testid="expiration-dialog">
      <button data-testid="expiration-period">1 day</button>
      <button data-testid="expiration-period">3 days</button>
      <button data-testid="expiration-period">7 days</button>
      <button data-testid="expiration-period">30 days</button>
      <button data-testid="expiration-period">No limit</button>
      <button data-testid="expiration-save">Save</button>
      <button data-testid="expiration-cancel">Cancel</button>
    </div>

    <div data-testid="schedule-dialog">
      <div class="vdatetime-calendar__current--month">October 2026</div>
      <button class="vdatetime-calendar__navigation--next">&rsaquo;</button>
      <button data-testid="schedule-day">1</button>
      <button data-testid="schedule-day">2</button>
      <button data-testid="schedule-day">12</button>
      <button data-testid="schedule-day">20</button>
      <button data-testid="schedule-day">21</button>
      <button data-testid="schedule-day">28</button>
      <input data-testid="schedule-hour" value="12">
      <input data-testid="schedule-minute" value="00">
      <button data-testid="schedule-meridiem">AM</button>
      <button data-testid="schedule-meridiem">PM</button>
      <button data-testid="schedule-save">Save</button>
      <button data-testid="schedule-cancel">Cancel</button>
    </div>

    <div data-testid="poll-dialog">
      <button data-testid="poll-period">1 day</button>
      <button data-testid="poll-period">3 days</button>
      <button data-testid="poll-period">7 days</button>
      <button data-testid="poll-period">30 days</button>
      <button data-testid="poll-period">No limit</button>
      <div data-testid="poll-questions">
        <input data-testid="poll-question">
        <input data-testid="poll-question">
      </div>
      <button data-testid="poll-add">Add</button>
      <button data-testid="poll-save">Save</button>
      <button data-testid="poll-cancel">Cancel</button>
    </div>

    <div data-testid="price-dialog">
      <input data-testid="price-input" name="price">
      <button data-testid="price-save">Save</button>
      <button data-testid="price-cancel">Cancel</button>
    </div>

    <button data-testid="cancel-post">Cancel</button>
    <button data-testid="send" class="b-make-post__send">Post</button>
  </div>
</main>
</body></html>`

// UploadErrorDialog is appended to main by tests that simulate a rejected
// file.
const UploadErrorDialog = `<div data-testid="upload-error" class="b-dialog m-error">
  <p data-reason="filename">File name is not allowed</p>
  <button>OK</button>
</div>`

// UploadErrorDialogOther is a rejection for a reason other than the name.
const UploadErrorDialogOther = `<div data-testid="upload-error" class="b-dialog m-error">
  <p data-reason="size">File is too large</p>
  <button>OK</button>
</div>`

// PollAddHook makes the add-question button append another input, like the
// real composer does.
func PollAddHook(d *Driver) {
	d.Append(`[data-testid=poll-questions]`, `<input data-testid="poll-question">`)
}
